// Package steps binds the harness to godog.
//
// A World owns one harness.Suite for the sample runtime. Its
// InitializeTestSuite and InitializeScenario methods plug into a
// godog.TestSuite; every step definition delegates to a harness.Scenario.
package steps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/roach88/stagehand/internal/app"
	"github.com/roach88/stagehand/internal/app/fixtures"
	"github.com/roach88/stagehand/internal/config"
	"github.com/roach88/stagehand/internal/harness"
	"github.com/roach88/stagehand/internal/logging"
)

// World is the state shared by every scenario of one test run.
type World struct {
	cfg    config.Config
	sink   io.Writer
	logger *slog.Logger
	suite  *harness.Suite

	mu       sync.Mutex
	rt       *app.Runtime
	fixtures *fixtures.Set
}

// NewWorld creates a world that boots the sample runtime with cfg on first
// use. Runtime output that is not captured goes to sink, os.Stdout when nil.
func NewWorld(cfg config.Config, sink io.Writer) *World {
	if sink == nil {
		sink = os.Stdout
	}
	w := &World{
		cfg:    cfg,
		sink:   sink,
		logger: logging.New(os.Stderr, cfg.LogFormat, cfg.Verbose),
	}
	w.suite = harness.NewSuite(w.bootstrap, harness.Options{
		FixturesTag: cfg.FixturesTag,
		Logger:      w.logger,
	})
	return w
}

// Suite returns the underlying harness suite.
func (w *World) Suite() *harness.Suite { return w.suite }

// Runtime returns the booted runtime, nil before the first scenario.
func (w *World) Runtime() *app.Runtime {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rt
}

// Fixtures returns the registered fixture factories, nil before boot.
func (w *World) Fixtures() *fixtures.Set {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fixtures
}

// bootstrap is the harness.BootstrapFunc of the sample runtime.
func (w *World) bootstrap(ctx context.Context) (*harness.Components, error) {
	rt, err := app.Bootstrap(ctx, w.cfg, w.sink)
	if err != nil {
		return nil, err
	}
	set, err := fixtures.Register(rt)
	if err != nil {
		rt.Shutdown()
		return nil, fmt.Errorf("register fixtures: %w", err)
	}

	w.mu.Lock()
	w.rt = rt
	w.fixtures = set
	w.mu.Unlock()

	return &harness.Components{
		Dispatcher:  rt,
		Persistence: rt.Store(),
		Output:      rt.Console(),
		Fixtures:    rt.Fixtures(),
		Policy:      rt.Policy(),
		Roles:       rt.Roles(),
		Shutdown:    rt.Shutdown,
	}, nil
}

// Migrate boots the runtime and applies pending migrations without
// truncating anything.
func (w *World) Migrate(ctx context.Context) error {
	rt, err := w.runtime(ctx)
	if err != nil {
		return err
	}
	return rt.Store().ApplyMigrations(ctx)
}

// runtime returns the booted runtime or the suite's fatal error.
func (w *World) runtime(ctx context.Context) (*app.Runtime, error) {
	if err := w.suite.OnSuiteStart(ctx); err != nil {
		return nil, err
	}
	return w.Runtime(), nil
}
