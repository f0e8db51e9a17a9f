// Package app wires the mirror, catalog source, fetcher, and sync engine
// together and owns the daemon loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlang/packsync/internal/catalog"
	"github.com/openlang/packsync/internal/config"
	"github.com/openlang/packsync/internal/mirror"
	"github.com/openlang/packsync/internal/sync"
)

type App struct {
	cfg    *config.Config
	engine *sync.Engine
}

type Option func(*options)

type options struct {
	source catalog.Source
}

// WithSource overrides the catalog source, used by tests.
func WithSource(source catalog.Source) Option {
	return func(o *options) {
		o.source = source
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.source == nil {
		o.source = catalog.NewHTMLIndexSource(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries)
	}

	m, err := mirror.New(cfg.MirrorDir)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	fetcher := sync.NewFetcher(cfg.Timeout, cfg.MaxRetries, cfg.Workers)
	engine := sync.NewEngine(o.source, m, fetcher, cfg.PruneStale)

	return &App{cfg: cfg, engine: engine}, nil
}

// RunOnce executes a single sync cycle.
func (a *App) RunOnce(ctx context.Context) (*sync.Result, error) {
	return a.engine.Run(ctx)
}

// RunForever executes sync cycles every configured interval until the
// context is cancelled. A failed or skipped run never stops the loop.
func (a *App) RunForever(ctx context.Context) error {
	slog.Info("daemon start", "interval", a.cfg.Interval, "mirror", a.cfg.MirrorDir, "upstream", a.cfg.BaseURL)

	a.runLogged(ctx)

	// a timer, not a ticker, so a slow run doesn't queue up extra cycles
	timer := time.NewTimer(a.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("daemon stop")
			return nil
		case <-timer.C:
			a.runLogged(ctx)
			timer.Reset(a.cfg.Interval)
		}
	}
}

func (a *App) runLogged(ctx context.Context) {
	_, err := a.engine.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sync.ErrSyncAlreadyRunning), errors.Is(err, mirror.ErrMirrorLocked):
		slog.Info("run already in progress, skipping cycle")
	case errors.Is(err, context.Canceled):
	default:
		slog.Error("sync run failed", "error", err)
	}
}
