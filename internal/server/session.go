package server

import (
	"fmt"
	"strings"

	"github.com/jeuxgo/jeux/internal/game"
	"github.com/jeuxgo/jeux/internal/protocol"
)

// handleConnection runs one client session: register, read packets,
// dispatch, answer with ACK/NACK, and tear down on EOF or shutdown.
func (s *Server) handleConnection(conn Conn) {
	client, err := s.clients.Register(conn)
	if err != nil {
		s.log.Warn("rejecting connection", "remote", conn.RemoteAddr().String(), "err", err)
		conn.Close()
		return
	}

	defer func() {
		_ = client.Logout()
		s.clients.Unregister(client)
		conn.Close()
	}()

	for {
		hdr, payload, err := protocol.ReadPacket(conn)
		if err != nil {
			client.log.Debug("read failed", "err", err)
			return
		}
		if hdr.Type == protocol.NoPacket {
			client.log.Debug("connection closed by peer")
			return
		}
		if !s.dispatch(client, hdr, payload) {
			return
		}
	}
}

// dispatch runs one request against the client and sends the synchronous
// response. It returns false when the session must terminate.
func (s *Server) dispatch(client *Client, hdr protocol.Header, payload []byte) bool {
	switch hdr.Type {
	case protocol.Login:
		s.handleLogin(client, payload)
	case protocol.Users:
		s.handleUsers(client)
	case protocol.Invite:
		s.handleInvite(client, hdr.Role, payload)
	case protocol.Revoke:
		respond(client, client.Revoke(int(hdr.ID)))
	case protocol.Decline:
		respond(client, client.Decline(int(hdr.ID)))
	case protocol.Accept:
		s.handleAccept(client, int(hdr.ID))
	case protocol.Move:
		respond(client, client.MakeMove(int(hdr.ID), string(payload)))
	case protocol.Resign:
		respond(client, client.Resign(int(hdr.ID)))
	default:
		client.log.Warn("unknown packet type", "type", fmt.Sprintf("0x%02X", byte(hdr.Type)))
		return false
	}
	return true
}

// respond maps an operation result onto the synchronous wire response.
func respond(client *Client, err error) {
	if err != nil {
		client.log.Debug("request failed", "err", err)
		client.SendNack()
		return
	}
	client.SendAck(nil)
}

func (s *Server) handleLogin(client *Client, payload []byte) {
	name := string(payload)
	if name == "" {
		client.SendNack()
		return
	}
	respond(client, client.Login(s.players.Register(name)))
}

// handleUsers answers with one line per logged-in player:
// username, a tab, and the rating truncated to an integer.
func (s *Server) handleUsers(client *Client) {
	var b strings.Builder
	for _, p := range s.clients.AllPlayers() {
		fmt.Fprintf(&b, "%s\t%d\n", p.Name(), int(p.Rating()))
	}
	client.SendAck([]byte(b.String()))
}

// handleInvite resolves the target by username and creates the
// invitation. The request's role field names the role the target plays;
// the source takes the other one.
func (s *Server) handleInvite(client *Client, targetRole game.Role, payload []byte) {
	if !targetRole.Valid() {
		client.SendNack()
		return
	}
	target := s.clients.Lookup(string(payload))
	if target == nil {
		client.SendNack()
		return
	}
	// On success MakeInvitation has already acked with the invitation id.
	if err := client.MakeInvitation(target, targetRole.Opponent(), targetRole); err != nil {
		client.log.Debug("invite failed", "err", err)
		client.SendNack()
	}
}

func (s *Server) handleAccept(client *Client, id int) {
	board, err := client.Accept(id)
	if err != nil {
		client.log.Debug("accept failed", "err", err)
		client.SendNack()
		return
	}
	if board == "" {
		client.SendAck(nil)
		return
	}
	client.SendAck([]byte(board))
}
