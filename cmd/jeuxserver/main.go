// Jeux game server.
//
// Usage: jeuxserver -p <port> [-c <config>]
//
// SIGHUP (and SIGINT/SIGTERM) begins a graceful shutdown: the accept
// loop stops, every live session is unblocked and drained, and the
// process exits once the client registry is empty.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeuxgo/jeux/internal/config"
	"github.com/jeuxgo/jeux/internal/player"
	"github.com/jeuxgo/jeux/internal/server"
)

const defaultConfigPath = "config/jeuxserver.yaml"

func main() {
	port := flag.Int("p", 0, "port to listen on (required)")
	cfgPath := flag.String("c", defaultConfigPath, "path to the config file")
	flag.Parse()

	if *port < 1 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "usage: jeuxserver -p <port> [-c <config>]")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *port, *cfgPath); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port int, cfgPath string) error {
	if p := os.Getenv("JEUX_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	log := slog.Default()
	log.Info("jeux server starting", "port", port, "max_clients", cfg.MaxClients)

	players := player.NewRegistry()
	clients := server.NewClientRegistry(cfg.MaxClients, log)
	srv := server.New(cfg, players, clients, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx, port); err != nil {
			return fmt.Errorf("jeux server: %w", err)
		}
		return nil
	})

	if cfg.HTTP.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/", srv.HandleLeaderboard)
		mux.HandleFunc("/ws", srv.HandleWS)
		httpSrv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.BindAddress, cfg.HTTP.Port),
			Handler: mux,
		}

		g.Go(func() error {
			log.Info("http server starting", "address", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
