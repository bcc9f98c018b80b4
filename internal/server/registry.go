package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jeuxgo/jeux/internal/player"
)

// ErrRegistryFull is returned when a connection arrives while the
// registry already holds its maximum number of clients.
var ErrRegistryFull = errors.New("client registry is full")

// ClientRegistry is the bounded, ordered collection of live client
// sessions. It supports lookup by username, a snapshot of all bound
// players, a shutdown broadcast that unblocks every session loop, and
// waiting for all sessions to drain. The registry lock is always
// outermost: no client state lock is held while acquiring it.
type ClientRegistry struct {
	log      *slog.Logger
	capacity int

	mu      sync.Mutex
	empty   *sync.Cond
	clients []*Client
	nextID  uint64
}

// NewClientRegistry creates a registry bounded to capacity clients.
func NewClientRegistry(capacity int, log *slog.Logger) *ClientRegistry {
	r := &ClientRegistry{log: log, capacity: capacity}
	r.empty = sync.NewCond(&r.mu)
	return r
}

// Register creates a client session for conn and adds it to the registry.
// It fails with ErrRegistryFull at capacity.
func (r *ClientRegistry) Register(conn Conn) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.capacity {
		return nil, ErrRegistryFull
	}
	r.nextID++
	c := newClient(r.nextID, conn, r.log)
	r.clients = append(r.clients, c)
	r.log.Info("client registered", "session", c.id, "remote", conn.RemoteAddr().String(), "count", len(r.clients))
	return c, nil
}

// Unregister removes c from the registry and wakes WaitForEmpty waiters
// when the last client leaves.
func (r *ClientRegistry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.clients {
		if cur == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			break
		}
	}
	r.log.Info("client unregistered", "session", c.id, "count", len(r.clients))
	if len(r.clients) == 0 {
		r.empty.Broadcast()
	}
}

// Lookup returns the first registered client logged in under name, or nil.
func (r *ClientRegistry) Lookup(name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		if p := c.Player(); p != nil && p.Name() == name {
			return c
		}
	}
	return nil
}

// AllPlayers returns a snapshot of every player currently bound to a
// registered client.
func (r *ClientRegistry) AllPlayers() []*player.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	var players []*player.Player
	for _, c := range r.clients {
		if p := c.Player(); p != nil {
			players = append(players, p)
		}
	}
	return players
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// ShutdownAll closes the read half of every registered client's
// connection. Each session loop observes EOF and exits through its
// normal logout path; writes in flight still drain.
func (r *ClientRegistry) ShutdownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("shutting down all clients", "count", len(r.clients))
	for _, c := range r.clients {
		if err := c.conn.CloseRead(); err != nil {
			r.log.Debug("close read", "session", c.id, "err", err)
		}
	}
}

// WaitForEmpty blocks until the registry holds no clients.
func (r *ClientRegistry) WaitForEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.clients) > 0 {
		r.empty.Wait()
	}
}
