// Package persistence provides the GORM-backed persistence manager the
// runtime writes through and the harness resets between scenarios.
//
// The manager implements a small unit of work:
//   - Add: schedule an entity for insert-or-update and remember its identity
//   - Flush: write every scheduled entity in one transaction, in Add order
//   - Identity cache: entities loaded or added in this unit of work, keyed by
//     table and primary key, so repeated lookups return the same object
//   - ClearIdentityCache: forget every cached entity
//
// # Schema management
//
// Migrations are Go functions identified by ID and applied at most once each,
// in order, inside one transaction per migration. Applied IDs are recorded in
// a ledger table (migration_status by default). A migration that meets an
// already existing table fails; callers decide whether to tear the schema
// down and retry.
//
// # Backends
//
//   - sqlite (default): WAL, busy_timeout=5000, foreign_keys=ON, single
//     connection so connection-scoped pragmas stick
//   - postgres
//   - mysql: DSN needs multiStatements=true for batched statements
package persistence
