package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/jeuxgo/jeux/internal/game"
	"github.com/jeuxgo/jeux/internal/player"
	"github.com/jeuxgo/jeux/internal/protocol"
)

// Conn is the framed duplex channel a client session runs over. CloseRead
// shuts down the read half only, which unblocks the session loop with EOF
// while letting in-flight writes drain; transports without half-close
// implement it as a full close.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
	CloseRead() error
	RemoteAddr() net.Addr
}

// Errors reported by client operations. The session loop answers each of
// them with a NACK; none of them affects other sessions.
var (
	errAlreadyLoggedIn    = errors.New("client is already logged in")
	errNotLoggedIn        = errors.New("client is not logged in")
	errUnknownInvitation  = errors.New("no invitation with that id")
	errNotSource          = errors.New("client is not the source of the invitation")
	errNotTarget          = errors.New("client is not the target of the invitation")
	errTooManyInvitations = errors.New("invitation table is full")
)

// maxInvitations bounds the per-client slot table: invitation ids must
// fit the one-byte id field of the packet header.
const maxInvitations = 256

// Client is the server-side session for one connection. It carries the
// optional player binding and the slot table of invitations in which the
// client participates, and it serializes all writes to its connection.
//
// Invitation ids are slot indices: a new invitation is appended, a
// removed one leaves a nil slot, so an id refers to the same invitation
// for that invitation's whole lifetime in this client's view.
//
// Lock order: when two clients must be locked together, the one with the
// smaller registration id is locked first (see lockPair). The state lock
// is never held while acquiring the registry lock.
type Client struct {
	id   uint64
	conn Conn
	log  *slog.Logger

	mu          sync.Mutex // guards player and invitations
	player      *player.Player
	invitations []*Invitation

	wmu sync.Mutex // serializes conn writes so packets never interleave
}

func newClient(id uint64, conn Conn, log *slog.Logger) *Client {
	return &Client{
		id:   id,
		conn: conn,
		log:  log.With("session", id, "remote", conn.RemoteAddr().String()),
	}
}

// lockPair acquires the state locks of two distinct clients in id order.
// The returned function releases both.
func lockPair(a, b *Client) func() {
	first, second := a, b
	if first.id > second.id {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

// Player returns the bound player, or nil if the client is not logged in.
func (c *Client) Player() *player.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

// send stamps hdr with the current time and writes one packet, serialized
// against all other writes to this connection. A failed send means the
// peer is gone; it is logged and otherwise dropped.
func (c *Client) send(hdr protocol.Header, payload []byte) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	hdr.Stamp()
	if err := protocol.WritePacket(c.conn, hdr, payload); err != nil {
		c.log.Debug("dropping packet", "type", hdr.Type, "err", err)
	}
}

// SendAck sends an ACK with an optional payload.
func (c *Client) SendAck(payload []byte) {
	c.send(protocol.Header{Type: protocol.Ack}, payload)
}

// SendNack sends a NACK.
func (c *Client) SendNack() {
	c.send(protocol.Header{Type: protocol.Nack}, nil)
}

// resolveLocked maps a client-local invitation id to a live invitation.
// Caller holds c.mu.
func (c *Client) resolveLocked(id int) (*Invitation, error) {
	if id < 0 || id >= len(c.invitations) || c.invitations[id] == nil {
		return nil, errUnknownInvitation
	}
	return c.invitations[id], nil
}

// resolve looks up the invitation and checks the player binding in one
// critical section; nearly every operation starts this way.
func (c *Client) resolve(id int) (*Invitation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return nil, errNotLoggedIn
	}
	return c.resolveLocked(id)
}

// addInvitationLocked appends inv to the slot table and returns its id.
// Caller holds c.mu.
func (c *Client) addInvitationLocked(inv *Invitation) (int, error) {
	if len(c.invitations) >= maxInvitations {
		return 0, errTooManyInvitations
	}
	c.invitations = append(c.invitations, inv)
	return len(c.invitations) - 1, nil
}

// localIDLocked returns inv's id in this client's table, if present.
// Caller holds c.mu.
func (c *Client) localIDLocked(inv *Invitation) (int, bool) {
	for i, cur := range c.invitations {
		if cur == inv {
			return i, true
		}
	}
	return 0, false
}

// localID is localIDLocked with locking.
func (c *Client) localID(inv *Invitation) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localIDLocked(inv)
}

// removeLocked clears inv's slot and returns the id it occupied.
// Caller holds c.mu.
func (c *Client) removeLocked(inv *Invitation) (int, bool) {
	for i, cur := range c.invitations {
		if cur == inv {
			c.invitations[i] = nil
			return i, true
		}
	}
	return 0, false
}

// removeFromBoth clears inv from both participants' tables under both
// locks and reports the peer's former id, used for its notification.
// The peer may already have removed the entry (concurrent logout); the
// caller then skips the notification.
func (c *Client) removeFromBoth(inv *Invitation, peer *Client) (peerID int, peerHad bool) {
	unlock := lockPair(c, peer)
	defer unlock()
	c.removeLocked(inv)
	return peer.removeLocked(inv)
}

// invitationCount returns the number of live invitations.
func (c *Client) invitationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, inv := range c.invitations {
		if inv != nil {
			n++
		}
	}
	return n
}

// Login binds p to this client. A client may be bound to at most one
// player at a time.
func (c *Client) Login(p *player.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player != nil {
		return errAlreadyLoggedIn
	}
	c.player = p
	c.log.Info("player logged in", "player", p.Name())
	return nil
}

// Logout winds down every invitation this client participates in — games
// in progress are resigned, own open invitations revoked, others
// declined — and releases the player binding. Peers that have already
// disconnected are tolerated.
func (c *Client) Logout() error {
	c.mu.Lock()
	if c.player == nil {
		c.mu.Unlock()
		return errNotLoggedIn
	}
	name := c.player.Name()
	type entry struct {
		id  int
		inv *Invitation
	}
	var open []entry
	for i, inv := range c.invitations {
		if inv != nil {
			open = append(open, entry{i, inv})
		}
	}
	c.mu.Unlock()

	for _, e := range open {
		switch {
		case e.inv.Game() != nil:
			_ = c.Resign(e.id)
		case e.inv.Source() == c:
			_ = c.Revoke(e.id)
		default:
			_ = c.Decline(e.id)
		}
	}

	c.mu.Lock()
	c.player = nil
	c.mu.Unlock()
	c.log.Info("player logged out", "player", name)
	return nil
}

// MakeInvitation creates an OPEN invitation from this client to target,
// appends it to both participants' tables, and notifies both sides: the
// source gets an ACK carrying its local id, the target an INVITED packet
// carrying the target-local id, the target's role, and the source's
// username as payload.
func (c *Client) MakeInvitation(target *Client, sourceRole, targetRole game.Role) error {
	inv, err := newInvitation(c, target, sourceRole, targetRole)
	if err != nil {
		return err
	}

	unlock := lockPair(c, target)
	if c.player == nil || target.player == nil {
		unlock()
		return errNotLoggedIn
	}
	sourceName := c.player.Name()
	sourceID, err := c.addInvitationLocked(inv)
	if err != nil {
		unlock()
		return err
	}
	targetID, err := target.addInvitationLocked(inv)
	if err != nil {
		// Roll back the source slot; nothing was announced yet.
		c.removeLocked(inv)
		unlock()
		return err
	}
	unlock()

	c.send(protocol.Header{Type: protocol.Ack, ID: uint8(sourceID)}, nil)
	target.send(protocol.Header{
		Type: protocol.Invited,
		ID:   uint8(targetID),
		Role: targetRole,
	}, []byte(sourceName))
	c.log.Debug("invitation sent", "target", target.id, "source_id", sourceID, "target_id", targetID)
	return nil
}

// Revoke closes an OPEN invitation this client is the source of, removes
// it from both participants, and sends REVOKED to the target under the
// target-local id.
func (c *Client) Revoke(id int) error {
	inv, err := c.resolve(id)
	if err != nil {
		return err
	}
	if inv.Source() != c {
		return errNotSource
	}
	if inv.Game() != nil {
		return errGameInProgress
	}
	if err := inv.close(game.RoleNone); err != nil {
		return err
	}

	peer := inv.Target()
	peerID, peerHad := c.removeFromBoth(inv, peer)
	if peerHad {
		peer.send(protocol.Header{Type: protocol.Revoked, ID: uint8(peerID)}, nil)
	}
	return nil
}

// Decline closes an OPEN invitation this client is the target of, removes
// it from both participants, and sends DECLINED to the source under the
// source-local id.
func (c *Client) Decline(id int) error {
	inv, err := c.resolve(id)
	if err != nil {
		return err
	}
	if inv.Target() != c {
		return errNotTarget
	}
	if inv.Game() != nil {
		return errGameInProgress
	}
	if err := inv.close(game.RoleNone); err != nil {
		return err
	}

	peer := inv.Source()
	peerID, peerHad := c.removeFromBoth(inv, peer)
	if peerHad {
		peer.send(protocol.Header{Type: protocol.Declined, ID: uint8(peerID)}, nil)
	}
	return nil
}

// Accept moves the invitation to ACCEPTED, creating its game, and sends
// ACCEPTED to the source under the source-local id. The initial board
// rendering goes to whichever side moves first: as the source's ACCEPTED
// payload when the source plays first, otherwise as the returned string,
// which the session loop delivers in the target's ACK.
func (c *Client) Accept(id int) (string, error) {
	inv, err := c.resolve(id)
	if err != nil {
		return "", err
	}
	if inv.Target() != c {
		return "", errNotTarget
	}
	if err := inv.accept(); err != nil {
		return "", err
	}

	board := inv.Game().Render()
	source := inv.Source()
	sourceID, sourceHad := source.localID(inv)

	if inv.roleOf(source) == game.RoleFirst {
		if sourceHad {
			source.send(protocol.Header{Type: protocol.Accepted, ID: uint8(sourceID)}, []byte(board))
		}
		return "", nil
	}
	if sourceHad {
		source.send(protocol.Header{Type: protocol.Accepted, ID: uint8(sourceID)}, nil)
	}
	return board, nil
}

// MakeMove parses and applies one move on the invitation's game, sends
// the updated board to the peer as MOVED, and, if the move ended the
// game, posts the rating result, sends ENDED to both participants with
// the winning role, and removes the invitation from both tables.
func (c *Client) MakeMove(id int, text string) error {
	inv, err := c.resolve(id)
	if err != nil {
		return err
	}
	g := inv.Game()
	if g == nil {
		return errNoGame
	}

	role := inv.roleOf(c)
	m, err := g.ParseMove(role, text)
	if err != nil {
		return err
	}
	if err := g.Apply(m); err != nil {
		return err
	}
	c.log.Debug("move applied", "invitation", id, "move", m.String())

	board := g.Render()
	peer := inv.peerOf(c)
	if peerID, ok := peer.localID(inv); ok {
		peer.send(protocol.Header{Type: protocol.Moved, ID: uint8(peerID)}, []byte(board))
	}

	if !g.Over() {
		return nil
	}

	winner := g.Winner()
	inv.finish()
	c.postResult(inv, winner)
	for _, side := range [2]*Client{inv.Source(), inv.Target()} {
		if sideID, ok := side.localID(inv); ok {
			side.send(protocol.Header{Type: protocol.Ended, ID: uint8(sideID), Role: winner}, nil)
		}
	}
	c.removeFromBoth(inv, peer)
	return nil
}

// Resign closes an in-progress game in the peer's favor, posts the
// rating result, removes the invitation from both tables, and sends
// RESIGNED to the peer under the peer-local id.
func (c *Client) Resign(id int) error {
	inv, err := c.resolve(id)
	if err != nil {
		return err
	}
	if inv.Game() == nil {
		return errNoGame
	}

	role := inv.roleOf(c)
	if err := inv.close(role); err != nil {
		return err
	}

	c.postResult(inv, role.Opponent())
	peer := inv.peerOf(c)
	peerID, peerHad := c.removeFromBoth(inv, peer)
	if peerHad {
		peer.send(protocol.Header{Type: protocol.Resigned, ID: uint8(peerID)}, nil)
	}
	return nil
}

// postResult updates both players' ratings for a finished game. A peer
// that logged out mid-game has no binding anymore; the result is then
// unrecordable and skipped.
func (c *Client) postResult(inv *Invitation, winner game.Role) {
	sourcePlayer := inv.Source().Player()
	targetPlayer := inv.Target().Player()
	if sourcePlayer == nil || targetPlayer == nil {
		return
	}

	outcome := player.Draw
	switch winner {
	case inv.roleOf(inv.Source()):
		outcome = player.P1Win
	case inv.roleOf(inv.Target()):
		outcome = player.P2Win
	}
	player.PostResult(sourcePlayer, targetPlayer, outcome)
	c.log.Info("game result posted",
		"source", sourcePlayer.Name(),
		"target", targetPlayer.Name(),
		"winner", winner)
}
