package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"twido/internal/blob"
	"twido/internal/config"
	"twido/internal/core"
	"twido/internal/persistence"
	"twido/internal/rewards"
	"twido/pkg/domain"
)

// app wires the store and its collaborators for one command invocation.
type app struct {
	cfg      config.Config
	userID   string
	logger   *slog.Logger
	registry *prometheus.Registry
	blobs    blob.Store
	store    *core.Store
	out      io.Writer
}

// openApp loads configuration, opens the backend for the resolved identity
// and hydrates the store.
func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	userID := cfg.UserID
	if cmd.Flags().Changed("user") {
		userID = opts.user
	}
	if opts.guest {
		userID = ""
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	factory, err := persistence.NewFactory(cfg.Persistence, persistence.Deps{Blob: blobs, Logger: logger})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	storeOpts := []core.Option{
		core.WithLogger(logger),
		core.WithMetrics(core.NewPrometheusMetricsRecorder(registry)),
		core.WithLocation(loc),
		core.WithRewards(rewards.NewEngine(cfg.RewardsConfig(), nil)),
		core.WithNotifier(&printNotifier{w: cmd.ErrOrStderr()}),
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		storeOpts = append(storeOpts, core.WithGeolocator(staticGeolocator{coord: domain.Coordinate{Latitude: opts.lat, Longitude: opts.lon}}))
	}
	store := core.New(factory.Open, storeOpts...)
	if err := store.SwitchIdentity(ctx, userID); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Debug("store ready", "user", userID, "backend", store.Backend())
	return &app{
		cfg:      cfg,
		userID:   userID,
		logger:   logger,
		registry: registry,
		blobs:    blobs,
		store:    store,
		out:      cmd.OutOrStdout(),
	}, nil
}

// close waits for queued writes and releases the backend. A persistence
// failure during the command is reported as the command's error.
func (a *app) close(ctx context.Context) error {
	flushErr := a.store.Flush(ctx)
	closeErr := a.store.Close()
	return errors.Join(flushErr, closeErr)
}

// withApp runs fn against an opened app and closes it afterwards.
func withApp(opts *globalOptions, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, opts)
		if err != nil {
			return err
		}
		runErr := fn(cmd, a, args)
		return errors.Join(runErr, a.close(cmd.Context()))
	}
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

type printNotifier struct {
	w io.Writer
}

func (n *printNotifier) Notify(note domain.Notification) {
	prefix := "*"
	if note.IsAlert() {
		prefix = "!"
	}
	_, _ = fmt.Fprintf(n.w, "%s %s: %s\n", prefix, note.Title, note.Message)
}

// staticGeolocator reports the coordinate passed on the command line.
type staticGeolocator struct {
	coord domain.Coordinate
}

func (g staticGeolocator) CurrentCoordinate(context.Context) (domain.Coordinate, error) {
	return g.coord, nil
}
