package server

import (
	"io"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleWS upgrades an HTTP request to a websocket and serves the
// ordinary Jeux session loop over it. The framed protocol is identical
// to the TCP transport; packets travel in binary messages.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.log.Info("websocket connection", "remote", conn.RemoteAddr().String())
	s.handleConnection(&wsConn{conn: conn})
}

// wsConn adapts a message-oriented websocket to the byte-stream Conn the
// session loop expects. Reads continue across message boundaries.
// Websockets have no read half to close, so CloseRead closes the whole
// connection; pending reads fail and the session drains as usual.
type wsConn struct {
	conn *websocket.Conn
	r    io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				// Normal closure reads as EOF so the session loop
				// terminates through its orderly path.
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) CloseRead() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
