package harness

import (
	"context"
	"errors"

	"github.com/roach88/stagehand/internal/cmdline"
)

// Dispatcher turns command lines into requests and runs them.
type Dispatcher interface {
	BuildRequest(line string) (cmdline.Request, error)
	Dispatch(ctx context.Context, req cmdline.Request) error
}

// Persistence is the unit of work and schema control of the runtime.
type Persistence interface {
	Flush(ctx context.Context) error
	ClearIdentityCache()

	// DiscardPending drops queued writes that were never flushed.
	DiscardPending()

	TeardownSchema(ctx context.Context) error
	ApplyMigrations(ctx context.Context) error
	SchemaTables(ctx context.Context) ([]string, error)
	ExecRaw(ctx context.Context, sql string) error

	// Dialect names the backend: "mysql", "postgres", "sqlite" or anything
	// else for the default statements.
	Dialect() string

	// MigrationLedger names the table that must survive truncation.
	MigrationLedger() string
}

// FixtureResetter resets every registered fixture factory and returns how
// many were reset.
type FixtureResetter interface {
	ResetAll() int
}

// PolicyCache is the role cache invalidated after every reset.
type PolicyCache interface {
	Reset()
}

// RoleRepository forgets roles created but not yet persisted.
type RoleRepository interface {
	ClearPendingNewRoles()
}

// OutputControl is the capture window around a command.
type OutputControl interface {
	Reset()
	Start()
	Stop()
	Suppress()
	Restore()
	Captured() string
}

// Components is the runtime handle produced by a BootstrapFunc.
//
// Dispatcher, Persistence and Output are required. Fixtures, Policy and
// Roles are skipped when nil; leave Roles nil when the runtime has no role
// repository.
type Components struct {
	Dispatcher  Dispatcher
	Persistence Persistence
	Output      OutputControl
	Fixtures    FixtureResetter
	Policy      PolicyCache
	Roles       RoleRepository

	// Shutdown is called once by Suite.OnSuiteEnd. May be nil.
	Shutdown func() error
}

// BootstrapFunc boots the runtime. The Suite calls it at most once.
type BootstrapFunc func(ctx context.Context) (*Components, error)

func (c *Components) validate() error {
	if c == nil {
		return errors.New("bootstrap returned no components")
	}
	if c.Dispatcher == nil {
		return errors.New("components: dispatcher is required")
	}
	if c.Persistence == nil {
		return errors.New("components: persistence is required")
	}
	if c.Output == nil {
		return errors.New("components: output control is required")
	}
	return nil
}
