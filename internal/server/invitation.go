package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jeuxgo/jeux/internal/game"
)

// invitationState tracks the lifecycle of an Invitation.
type invitationState int

const (
	invOpen invitationState = iota
	invAccepted
	invClosed
)

func (s invitationState) String() string {
	switch s {
	case invOpen:
		return "open"
	case invAccepted:
		return "accepted"
	default:
		return "closed"
	}
}

var (
	errInvitationClosed = errors.New("invitation is closed")
	errGameInProgress   = errors.New("a game is in progress")
	errNotOpen          = errors.New("invitation is not open")
	errNoGame           = errors.New("no game attached")
)

// Invitation is an offer by one client (the source) to play a game with
// another (the target), recording which role each would take. It starts
// OPEN; the target may accept it (creating a Game) or decline it, the
// source may revoke it, and once ACCEPTED it closes when the game ends.
// CLOSED is terminal. Safe for concurrent use: its own mutex guards the
// state and the game pointer, the game serializes its own board.
type Invitation struct {
	source     *Client
	target     *Client
	sourceRole game.Role
	targetRole game.Role

	mu    sync.Mutex
	state invitationState
	game_ *game.Game
}

// newInvitation creates an OPEN invitation. The participants must differ
// and the roles must be the two distinct playing roles.
func newInvitation(source, target *Client, sourceRole, targetRole game.Role) (*Invitation, error) {
	if source == target {
		return nil, errors.New("a client cannot invite itself")
	}
	if !sourceRole.Valid() || !targetRole.Valid() || sourceRole == targetRole {
		return nil, fmt.Errorf("invalid role assignment %s/%s", sourceRole, targetRole)
	}
	return &Invitation{
		source:     source,
		target:     target,
		sourceRole: sourceRole,
		targetRole: targetRole,
		state:      invOpen,
	}, nil
}

// Source returns the inviting client.
func (inv *Invitation) Source() *Client { return inv.source }

// Target returns the invited client.
func (inv *Invitation) Target() *Client { return inv.target }

// Game returns the game attached on accept, or nil before then.
func (inv *Invitation) Game() *game.Game {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.game_
}

// roleOf returns the game role c plays in this invitation.
func (inv *Invitation) roleOf(c *Client) game.Role {
	if c == inv.source {
		return inv.sourceRole
	}
	return inv.targetRole
}

// peerOf returns the other participant.
func (inv *Invitation) peerOf(c *Client) *Client {
	if c == inv.source {
		return inv.target
	}
	return inv.source
}

// accept moves the invitation OPEN -> ACCEPTED and attaches a new game.
func (inv *Invitation) accept() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.state != invOpen {
		return errNotOpen
	}
	inv.state = invAccepted
	inv.game_ = game.New()
	return nil
}

// close moves the invitation to CLOSED. With a playing role, the attached
// game is resigned on that role's behalf first; with game.RoleNone the
// invitation may only be closed while no game is in progress.
func (inv *Invitation) close(role game.Role) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.state == invClosed {
		return errInvitationClosed
	}
	if role == game.RoleNone {
		if inv.state == invAccepted && !inv.game_.Over() {
			return errGameInProgress
		}
	} else {
		if inv.game_ == nil {
			return errNoGame
		}
		if err := inv.game_.Resign(role); err != nil {
			return err
		}
	}
	inv.state = invClosed
	return nil
}

// finish moves an ACCEPTED invitation whose game has ended to CLOSED.
func (inv *Invitation) finish() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state == invAccepted {
		inv.state = invClosed
	}
}

// currentState returns the state under the lock, for inspection.
func (inv *Invitation) currentState() invitationState {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}
