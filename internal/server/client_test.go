package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeuxgo/jeux/internal/game"
	"github.com/jeuxgo/jeux/internal/player"
)

// loggedInPair returns two clients bound to fresh players from reg.
func loggedInPair(t *testing.T, reg *player.Registry) (*Client, *Client) {
	t.Helper()
	a := newTestClient(1)
	b := newTestClient(2)
	require.NoError(t, a.Login(reg.Register("alice")))
	require.NoError(t, b.Login(reg.Register("bob")))
	return a, b
}

func TestClient_Login(t *testing.T) {
	reg := player.NewRegistry()
	c := newTestClient(1)

	require.NoError(t, c.Login(reg.Register("alice")))
	assert.Equal(t, "alice", c.Player().Name())

	assert.ErrorIs(t, c.Login(reg.Register("bob")), errAlreadyLoggedIn)
	assert.Equal(t, "alice", c.Player().Name(), "binding unchanged after rejected login")
}

func TestClient_LogoutWithoutLogin(t *testing.T) {
	c := newTestClient(1)
	assert.ErrorIs(t, c.Logout(), errNotLoggedIn)
}

func TestClient_MakeInvitationRequiresLogin(t *testing.T) {
	reg := player.NewRegistry()
	a := newTestClient(1)
	b := newTestClient(2)

	assert.ErrorIs(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond), errNotLoggedIn)

	require.NoError(t, a.Login(reg.Register("alice")))
	assert.ErrorIs(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond), errNotLoggedIn,
		"target must be logged in too")
}

func TestClient_InvitationIDsAreStable(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())

	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))
	assert.Equal(t, 2, a.invitationCount())
	assert.Equal(t, 2, b.invitationCount())

	// Removing slot 0 must not renumber slot 1.
	first := a.invitations[0]
	second := a.invitations[1]
	require.NoError(t, a.Revoke(0))

	assert.Nil(t, a.invitations[0])
	assert.Nil(t, b.invitations[0])
	assert.Same(t, second, a.invitations[1])

	// A freed slot is never reused; new invitations append.
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))
	require.Len(t, a.invitations, 3)
	assert.Nil(t, a.invitations[0])
	assert.NotNil(t, a.invitations[2])
	assert.NotSame(t, first, a.invitations[2])
}

func TestClient_RevokeOnlyBySource(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))

	assert.ErrorIs(t, b.Revoke(0), errNotSource)
	assert.ErrorIs(t, a.Decline(0), errNotTarget)
	assert.ErrorIs(t, a.Revoke(5), errUnknownInvitation)

	require.NoError(t, a.Revoke(0))
	assert.ErrorIs(t, a.Revoke(0), errUnknownInvitation, "slot is gone after revoke")
}

func TestClient_DeclineClears(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))

	require.NoError(t, b.Decline(0))
	assert.Equal(t, 0, a.invitationCount())
	assert.Equal(t, 0, b.invitationCount())
}

func TestClient_AcceptDeliversBoardToFirstMover(t *testing.T) {
	// Source plays first: the board goes out in the source's ACCEPTED
	// packet and Accept returns nothing for the target's ACK.
	a, b := loggedInPair(t, player.NewRegistry())
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))

	board, err := b.Accept(0)
	require.NoError(t, err)
	assert.Empty(t, board)

	// Target plays first: Accept hands the board back for the ACK.
	require.NoError(t, a.MakeInvitation(b, game.RoleSecond, game.RoleFirst))
	board, err = b.Accept(1)
	require.NoError(t, err)
	assert.Equal(t, game.New().Render(), board)
}

func TestClient_AcceptOnlyByTarget(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))

	_, err := a.Accept(0)
	assert.ErrorIs(t, err, errNotTarget)

	_, err = b.Accept(0)
	require.NoError(t, err)
	_, err = b.Accept(0)
	assert.ErrorIs(t, err, errNotOpen, "accept twice")
}

func TestClient_MoveNeedsGame(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))

	assert.ErrorIs(t, a.MakeMove(0, "5"), errNoGame)
	assert.ErrorIs(t, a.Resign(0), errNoGame)
}

func TestClient_FullGameUpdatesRatings(t *testing.T) {
	reg := player.NewRegistry()
	a, b := loggedInPair(t, reg)
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))
	_, err := b.Accept(0)
	require.NoError(t, err)

	// Anti-diagonal win for the source: 5, 3, 7.
	moves := []struct {
		c   *Client
		pos string
	}{
		{a, "5"}, {b, "1"}, {a, "3"}, {b, "2"}, {a, "7"},
	}
	for i, m := range moves {
		require.NoError(t, m.c.MakeMove(0, m.pos), "move %d", i)
	}

	assert.InDelta(t, 1516, reg.Register("alice").Rating(), 1e-9)
	assert.InDelta(t, 1484, reg.Register("bob").Rating(), 1e-9)

	// The finished game is removed from both tables.
	assert.Equal(t, 0, a.invitationCount())
	assert.Equal(t, 0, b.invitationCount())
	assert.ErrorIs(t, a.MakeMove(0, "9"), errUnknownInvitation)
}

func TestClient_MoveValidation(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))
	_, err := b.Accept(0)
	require.NoError(t, err)

	assert.ErrorIs(t, b.MakeMove(0, "5"), game.ErrNotYourTurn)
	assert.ErrorIs(t, a.MakeMove(0, "0"), game.ErrBadPosition)
	require.NoError(t, a.MakeMove(0, "5"))
	assert.ErrorIs(t, b.MakeMove(0, "5"), game.ErrOccupied)
	require.NoError(t, b.MakeMove(0, "1"))
}

func TestClient_ResignAwardsPeer(t *testing.T) {
	reg := player.NewRegistry()
	a, b := loggedInPair(t, reg)
	require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond))
	_, err := b.Accept(0)
	require.NoError(t, err)
	require.NoError(t, a.MakeMove(0, "5"))

	require.NoError(t, a.Resign(0))

	assert.InDelta(t, 1484, reg.Register("alice").Rating(), 1e-9)
	assert.InDelta(t, 1516, reg.Register("bob").Rating(), 1e-9)
	assert.Equal(t, 0, a.invitationCount())
	assert.Equal(t, 0, b.invitationCount())
}

func TestClient_LogoutWindsDownEverything(t *testing.T) {
	reg := player.NewRegistry()
	a := newTestClient(1)
	require.NoError(t, a.Login(reg.Register("alice")))

	peers := make([]*Client, 3)
	for i := range peers {
		peers[i] = newTestClient(uint64(2 + i))
		require.NoError(t, peers[i].Login(reg.Register(fmt.Sprintf("peer%d", i))))
	}

	// One open invitation a sourced, one a received, one accepted game.
	require.NoError(t, a.MakeInvitation(peers[0], game.RoleFirst, game.RoleSecond))
	require.NoError(t, peers[1].MakeInvitation(a, game.RoleFirst, game.RoleSecond))
	require.NoError(t, a.MakeInvitation(peers[2], game.RoleFirst, game.RoleSecond))
	_, err := peers[2].Accept(0)
	require.NoError(t, err)

	require.NoError(t, a.Logout())

	assert.Nil(t, a.Player())
	assert.Equal(t, 0, a.invitationCount())
	for i, p := range peers {
		assert.Equal(t, 0, p.invitationCount(), "peer %d", i)
	}

	// The abandoned game counts as a loss.
	assert.InDelta(t, 1484, reg.Register("alice").Rating(), 1e-9)
	assert.InDelta(t, 1516, reg.Register("peer2").Rating(), 1e-9)
}

func TestClient_InvitationTableBounded(t *testing.T) {
	a, b := loggedInPair(t, player.NewRegistry())

	for i := 0; i < maxInvitations; i++ {
		require.NoError(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond), "invitation %d", i)
	}
	assert.ErrorIs(t, a.MakeInvitation(b, game.RoleFirst, game.RoleSecond), errTooManyInvitations)
}
