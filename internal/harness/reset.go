package harness

import (
	"context"
	"errors"
	"fmt"
)

// resetFixtures brings the database to an empty, migrated state.
//
// The first call applies migrations and captures the snapshot, falling back
// to teardown and a single retry. Later calls only truncate. A failure to
// establish the schema is fatal to the suite.
func (s *Suite) resetFixtures(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.componentsLocked(ctx)
	if err != nil {
		return err
	}
	p := h.Persistence

	// Writes a previous scenario queued but never flushed must not leak
	// into this one, nor keep failing every later flush.
	p.DiscardPending()

	if snap, ok := s.schema.get(); ok {
		if err := truncate(ctx, p, snap); err != nil {
			return err
		}
		s.logger.DebugContext(ctx, "tables truncated", "tables", len(snap.Truncatable()))
	} else if err := s.establishSchemaLocked(ctx, p); err != nil {
		return err
	}

	p.ClearIdentityCache()
	resetFactories(h)
	return nil
}

func (s *Suite) establishSchemaLocked(ctx context.Context, p Persistence) error {
	needsTruncate := true

	if err := p.ApplyMigrations(ctx); err != nil {
		first := &MigrationError{Attempt: 1, Err: err}
		s.logger.WarnContext(ctx, "migrations failed, tearing down schema", "error", err)

		if tdErr := p.TeardownSchema(ctx); tdErr != nil {
			return s.failLocked(&FatalError{
				Op:  "teardown schema",
				Err: &MigrationError{Attempt: 1, Err: errors.Join(first.Err, tdErr)},
			})
		}
		if err := p.ApplyMigrations(ctx); err != nil {
			return s.failLocked(&FatalError{
				Op:  "apply migrations",
				Err: &MigrationError{Attempt: 2, Err: err},
			})
		}
		// Teardown left the store empty.
		needsTruncate = false
	}

	tables, err := p.SchemaTables(ctx)
	if err != nil {
		return s.failLocked(&FatalError{Op: "snapshot schema", Err: err})
	}
	snap := SchemaSnapshot{
		Dialect: p.Dialect(),
		Ledger:  p.MigrationLedger(),
		Tables:  tables,
	}
	s.schema.set(snap)
	s.logger.InfoContext(ctx, "schema snapshot captured",
		"dialect", snap.Dialect,
		"tables", len(snap.Tables),
	)

	if needsTruncate {
		if err := truncate(ctx, p, snap); err != nil {
			return fmt.Errorf("initial truncate: %w", err)
		}
	}
	return nil
}
