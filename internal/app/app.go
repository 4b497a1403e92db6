package app

import (
	"context"
	"errors"
	"fmt"

	"giftbuyer/internal/buyer"
	"giftbuyer/internal/config"
	"giftbuyer/internal/logger"
	livehttp "giftbuyer/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App wires the allocation loop to its source, stores and admin API.
type App struct {
	cfg      *config.Config
	engine   *buyer.Engine
	session  buyer.Session
	liveHTTP *livehttp.Server
	closers  []func() error
	Summary  *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(context.Background(), cfg)
}

// Run initialises the source session, then runs the loop and the HTTP
// server until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.engine == nil {
		return fmt.Errorf("allocation engine not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.session != nil {
		if err := a.session.Init(ctx); err != nil {
			return err
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.Run(ctx)
	})
	return group.Wait()
}

// Engine exposes the allocation loop (for tests and tooling).
func (a *App) Engine() *buyer.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Close releases stores in reverse order of creation.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
