package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"twido/internal/garden"
	"twido/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream live state snapshots over WebSocket and run garden regrowth",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			return serve(ctx, a, addr)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config listenAddr)")
	return cmd
}

// serve blocks until ctx is cancelled or the listener fails.
func serve(ctx context.Context, a *app, addr string) error {
	hub := ws.NewHub(a.store, a.logger)
	defer hub.Close()

	respawnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go garden.NewRespawner(a.store, a.cfg.RespawnInterval, nil, a.logger).Run(respawnCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.NewMux(hub, a.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr, "backend", a.store.Backend())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
