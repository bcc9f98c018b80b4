// Package server implements the concurrent Jeux session engine: client
// sessions, the invitation state machine, the client registry, and the
// accept loop that ties them to a listener. One goroutine serves each
// connection; shared objects are guarded by their own locks.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/jeuxgo/jeux/internal/config"
	"github.com/jeuxgo/jeux/internal/player"
)

// Server owns the client registry and serves the Jeux protocol on a
// listener. The player registry is shared with other front ends (the
// websocket transport and the leaderboard).
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	players *player.Registry
	clients *ClientRegistry

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server around explicit registries; nothing global.
func New(cfg config.Config, players *player.Registry, clients *ClientRegistry, log *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		players: players,
		clients: clients,
	}
}

// Clients exposes the client registry, for transports and tests.
func (s *Server) Clients() *ClientRegistry { return s.clients }

// Addr returns the listen address, or nil before Run/Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on the configured bind address and the given port and
// serves until ctx is cancelled and all sessions have drained.
func (s *Server) Run(ctx context.Context, port int) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then runs
// the ordered shutdown: stop accepting, close the read half of every
// live session, and wait until the registry is empty.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("jeux server listening", "address", ln.Addr().String())

	var wg sync.WaitGroup
	for {
		netConn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Error("accept failed", "err", err)
			continue
		}
		wg.Go(func() {
			s.handleConnection(asConn(netConn))
		})
	}

	s.clients.ShutdownAll()
	s.clients.WaitForEmpty()
	wg.Wait()
	s.log.Info("jeux server stopped")
	return nil
}

// asConn adapts an accepted net.Conn to the session Conn interface,
// preferring real TCP half-close for the shutdown broadcast.
func asConn(c net.Conn) Conn {
	if tc, ok := c.(*net.TCPConn); ok {
		return tc
	}
	return fullCloseConn{c}
}

// fullCloseConn serves transports without half-close; CloseRead degrades
// to a full close, which still unblocks the session loop.
type fullCloseConn struct {
	net.Conn
}

func (c fullCloseConn) CloseRead() error {
	return c.Conn.Close()
}
