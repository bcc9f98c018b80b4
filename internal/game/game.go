package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrNotYourTurn is returned when a player tries to move out of turn.
	ErrNotYourTurn = errors.New("not this player's turn")
	// ErrBadPosition is returned for a move text that does not name a board cell.
	ErrBadPosition = errors.New("position must be a number from 1 to 9")
	// ErrOccupied is returned for a move onto a non-empty cell.
	ErrOccupied = errors.New("cell is already occupied")
	// ErrGameOver is returned for any action on a finished game.
	ErrGameOver = errors.New("game is over")
)

// Game is a single tic-tac-toe match. The first player marks 'X', the
// second 'O'. All state-changing methods are safe for concurrent use.
type Game struct {
	mu     sync.Mutex
	board  [3][3]byte
	turn   Role
	over   bool
	winner Role
}

// New returns a fresh game with an empty board and the first player to move.
func New() *Game {
	g := &Game{turn: RoleFirst}
	for row := range 3 {
		for col := range 3 {
			g.board[row][col] = ' '
		}
	}
	return g
}

// Move is a validated move: a cell position 1..9 and the role that plays it.
// Positions are numbered left to right, top to bottom.
type Move struct {
	Pos  int
	Row  int
	Col  int
	Role Role
}

// String renders a move the way the client echoes it, e.g. "5<X".
func (m Move) String() string {
	return fmt.Sprintf("%d<%c", m.Pos, m.Role.Mark())
}

// ParseMove parses text as a board position for role. It fails if the text
// is not a decimal number 1..9 or if it is not role's turn.
func (g *Game) ParseMove(role Role, text string) (Move, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return Move{}, ErrGameOver
	}
	if g.turn != role {
		return Move{}, ErrNotYourTurn
	}

	pos, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || pos < 1 || pos > 9 {
		return Move{}, ErrBadPosition
	}

	return Move{
		Pos:  pos,
		Row:  (pos - 1) / 3,
		Col:  (pos - 1) % 3,
		Role: role,
	}, nil
}

// Apply plays a previously parsed move. The target cell must be empty and
// the game still running. On success the turn passes to the opponent and
// the game is checked for a win or a draw.
func (g *Game) Apply(m Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return ErrGameOver
	}
	if g.turn != m.Role {
		return ErrNotYourTurn
	}
	if g.board[m.Row][m.Col] != ' ' {
		return ErrOccupied
	}

	g.board[m.Row][m.Col] = m.Role.Mark()
	g.turn = m.Role.Opponent()
	g.checkEnd(m.Role)
	return nil
}

// checkEnd sets winner and over after mover's mark was placed.
// Caller holds g.mu.
func (g *Game) checkEnd(mover Role) {
	mark := mover.Mark()

	won := g.board[0][0] == mark && g.board[1][1] == mark && g.board[2][2] == mark ||
		g.board[0][2] == mark && g.board[1][1] == mark && g.board[2][0] == mark
	for i := 0; i < 3 && !won; i++ {
		won = g.board[i][0] == mark && g.board[i][1] == mark && g.board[i][2] == mark ||
			g.board[0][i] == mark && g.board[1][i] == mark && g.board[2][i] == mark
	}
	if won {
		g.winner = mover
		g.over = true
		return
	}

	for row := range 3 {
		for col := range 3 {
			if g.board[row][col] == ' ' {
				return
			}
		}
	}
	// Board full, nobody won.
	g.winner = RoleNone
	g.over = true
}

// Resign ends the game in favor of role's opponent. It is an error to
// resign a game that is already over.
func (g *Game) Resign(role Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return ErrGameOver
	}
	g.winner = role.Opponent()
	g.over = true
	return nil
}

// Over reports whether the game has ended.
func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.over
}

// Winner returns the winning role, or RoleNone for a draw or a running game.
func (g *Game) Winner() Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner
}

// Render produces the textual board state sent to clients.
func (g *Game) Render() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.WriteString("Game Board:\n")
	for row := range 3 {
		fmt.Fprintf(&b, "%c|%c|%c\n", g.board[row][0], g.board[row][1], g.board[row][2])
		if row < 2 {
			b.WriteString("-----\n")
		}
	}
	fmt.Fprintf(&b, "player %c turn\n", g.turn.Mark())
	return b.String()
}
