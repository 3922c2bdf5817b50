// Package app is the sample console application the harness drives.
//
// A Runtime owns the database connection, the role repository, the policy
// service and the fixture registry. Commands are resolved against a cobra
// command tree; everything they print or log goes through one
// capture.Capture.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/stagehand/internal/capture"
	"github.com/roach88/stagehand/internal/cmdline"
	"github.com/roach88/stagehand/internal/config"
	"github.com/roach88/stagehand/internal/fixture"
	"github.com/roach88/stagehand/internal/logging"
	"github.com/roach88/stagehand/internal/persistence"
	"github.com/roach88/stagehand/internal/security"
)

// Runtime is a booted application.
type Runtime struct {
	cfg      config.Config
	console  *capture.Capture
	logger   *slog.Logger
	store    *persistence.Manager
	roles    *security.RoleRepository
	policy   *security.PolicyService
	fixtures *fixture.Registry

	closeOnce sync.Once
	closeErr  error
}

// Bootstrap opens the database and wires the services. Console and log
// output is forwarded to sink unless the capture suppresses it.
//
// Bootstrap does not apply migrations.
func Bootstrap(ctx context.Context, cfg config.Config, sink io.Writer) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var policy *security.Policy
	if cfg.PolicyFile != "" {
		p, err := security.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	console := capture.New(sink)
	logger := logging.New(console, cfg.LogFormat, cfg.Verbose)

	store, err := persistence.Open(persistence.Options{
		Driver:     cfg.Driver,
		DSN:        cfg.DSN,
		Ledger:     cfg.MigrationLedger,
		Migrations: Migrations(),
		Logger:     logger,
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	roles := security.NewRoleRepository(store)
	rt := &Runtime{
		cfg:      cfg,
		console:  console,
		logger:   logger,
		store:    store,
		roles:    roles,
		policy:   security.NewPolicyService(roles, policy),
		fixtures: fixture.NewRegistry(),
	}

	logger.DebugContext(ctx, "runtime booted", "driver", cfg.Driver, "dialect", store.Dialect())
	return rt, nil
}

// Shutdown closes the database. Later calls return the first result.
func (rt *Runtime) Shutdown() error {
	rt.closeOnce.Do(func() {
		rt.closeErr = rt.store.Close()
	})
	return rt.closeErr
}

// Config returns the configuration the runtime was booted with.
func (rt *Runtime) Config() config.Config { return rt.cfg }

// Console returns the capture all command output goes through.
func (rt *Runtime) Console() *capture.Capture { return rt.console }

// Logger returns the runtime logger. It writes to Console.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Store returns the persistence manager.
func (rt *Runtime) Store() *persistence.Manager { return rt.store }

// Roles returns the role repository.
func (rt *Runtime) Roles() *security.RoleRepository { return rt.roles }

// Policy returns the policy service.
func (rt *Runtime) Policy() *security.PolicyService { return rt.policy }

// Fixtures returns the fixture factory registry.
func (rt *Runtime) Fixtures() *fixture.Registry { return rt.fixtures }

// BuildRequest parses line and checks that it names a known command.
func (rt *Runtime) BuildRequest(line string) (cmdline.Request, error) {
	req, err := cmdline.Parse(line)
	if err != nil {
		return cmdline.Request{}, err
	}
	if !hasCommand(rt.newRootCommand(), req.Command) {
		return cmdline.Request{}, &cmdline.ParseError{
			Line: line,
			Err:  fmt.Errorf("unknown command %q", req.Command),
		}
	}
	return req, nil
}

// Dispatch executes req against a fresh command tree.
func (rt *Runtime) Dispatch(ctx context.Context, req cmdline.Request) error {
	root := rt.newRootCommand()
	root.SetArgs(req.Argv())
	root.SetOut(rt.console)
	root.SetErr(rt.console)
	rt.logger.DebugContext(ctx, "dispatch", "command", req.Command)
	return root.ExecuteContext(ctx)
}
