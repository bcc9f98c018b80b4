package server

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeuxgo/jeux/internal/game"
)

// discardConn is a Conn for unit tests that swallows writes and reads EOF.
type discardConn struct{}

func (discardConn) Read(p []byte) (int, error)  { return 0, io.EOF }
func (discardConn) Write(p []byte) (int, error) { return len(p), nil }
func (discardConn) Close() error                { return nil }
func (discardConn) CloseRead() error            { return nil }
func (discardConn) RemoteAddr() net.Addr        { return &net.TCPAddr{} }

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestClient(id uint64) *Client {
	return newClient(id, discardConn{}, testLog)
}

func TestNewInvitation_Validation(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)

	_, err := newInvitation(a, a, game.RoleFirst, game.RoleSecond)
	assert.Error(t, err, "self invitation")

	_, err = newInvitation(a, b, game.RoleFirst, game.RoleFirst)
	assert.Error(t, err, "both sides with the same role")

	_, err = newInvitation(a, b, game.RoleNone, game.RoleSecond)
	assert.Error(t, err, "non-playing role")

	inv, err := newInvitation(a, b, game.RoleSecond, game.RoleFirst)
	require.NoError(t, err)
	assert.Equal(t, invOpen, inv.currentState())
	assert.Nil(t, inv.Game())
}

func TestInvitation_RoleAndPeer(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)

	assert.Equal(t, game.RoleFirst, inv.roleOf(a))
	assert.Equal(t, game.RoleSecond, inv.roleOf(b))
	assert.Same(t, b, inv.peerOf(a))
	assert.Same(t, a, inv.peerOf(b))
}

func TestInvitation_Accept(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)

	require.NoError(t, inv.accept())
	assert.Equal(t, invAccepted, inv.currentState())
	require.NotNil(t, inv.Game())

	assert.ErrorIs(t, inv.accept(), errNotOpen, "accept is not idempotent")
}

func TestInvitation_CloseOpen(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)

	require.NoError(t, inv.close(game.RoleNone))
	assert.Equal(t, invClosed, inv.currentState())

	// CLOSED is terminal.
	assert.ErrorIs(t, inv.close(game.RoleNone), errInvitationClosed)
	assert.ErrorIs(t, inv.accept(), errNotOpen)
}

func TestInvitation_CloseRejectedWhileGameRuns(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)
	require.NoError(t, inv.accept())

	assert.ErrorIs(t, inv.close(game.RoleNone), errGameInProgress)
	assert.Equal(t, invAccepted, inv.currentState())
}

func TestInvitation_CloseResignsGame(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)
	require.NoError(t, inv.accept())

	require.NoError(t, inv.close(game.RoleSecond))
	assert.Equal(t, invClosed, inv.currentState())
	assert.True(t, inv.Game().Over())
	assert.Equal(t, game.RoleFirst, inv.Game().Winner())
}

func TestInvitation_CloseWithoutGameNeedsNoRole(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)

	assert.ErrorIs(t, inv.close(game.RoleFirst), errNoGame)
}

func TestInvitation_Finish(t *testing.T) {
	a := newTestClient(1)
	b := newTestClient(2)
	inv, err := newInvitation(a, b, game.RoleFirst, game.RoleSecond)
	require.NoError(t, err)
	require.NoError(t, inv.accept())

	inv.finish()
	assert.Equal(t, invClosed, inv.currentState())

	// finish on an already closed invitation is a no-op.
	inv.finish()
	assert.Equal(t, invClosed, inv.currentState())
}
