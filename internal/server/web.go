package server

import (
	"html/template"
	"net/http"
)

var leaderboardTmpl = template.Must(template.New("leaderboard").Parse(`<!DOCTYPE html>
<html>
<head><title>Jeux Players</title></head>
<body>
<h1>Players</h1>
<table>
<tr><th>Player</th><th>Rating</th></tr>
{{range .}}<tr><td>{{.Name}}</td><td>{{.Rating}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// HandleLeaderboard renders every player the registry has ever seen,
// with ratings truncated the same way the USERS response truncates them.
func (s *Server) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	type row struct {
		Name   string
		Rating int
	}
	var rows []row
	for _, p := range s.players.Snapshot() {
		rows = append(rows, row{Name: p.Name(), Rating: int(p.Rating())})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := leaderboardTmpl.Execute(w, rows); err != nil {
		s.log.Error("rendering leaderboard", "err", err)
	}
}
