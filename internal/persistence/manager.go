package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roach88/stagehand/internal/logging"
)

// Dialect names as reported by the GORM dialector.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// DefaultLedger is the migration ledger table used when Options.Ledger is empty.
const DefaultLedger = "migration_status"

var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Entity is a persistable row with a string primary key.
type Entity interface {
	TableName() string
	EntityID() string
}

type identityKey struct {
	table string
	id    string
}

// Options configure Open.
type Options struct {
	// Driver is sqlite, postgres or mysql.
	Driver string

	// DSN is passed to the driver unchanged.
	DSN string

	// Ledger names the migration ledger table. Defaults to DefaultLedger.
	Ledger string

	// Migrations are applied in slice order by ApplyMigrations.
	Migrations []Migration

	// Logger receives GORM query logs. Defaults to a discarding logger.
	Logger *slog.Logger

	// Verbose logs every query at debug level.
	Verbose bool
}

// Manager owns the database connection and the unit of work.
type Manager struct {
	db         *gorm.DB
	dialect    string
	ledger     string
	migrations []Migration
	logger     *slog.Logger

	mu        sync.Mutex
	pending   []Entity
	identity  map[identityKey]Entity
	listeners []func()
}

// Open connects to the configured backend.
//
// Open does not apply migrations; call ApplyMigrations.
func Open(opts Options) (*Manager, error) {
	ledger := opts.Ledger
	if ledger == "" {
		ledger = DefaultLedger
	}
	if !validIdentifier.MatchString(ledger) {
		return nil, fmt.Errorf("invalid ledger table name %q", ledger)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	dialector, err := openDialector(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(logger, opts.Verbose),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Manager{
		db:         db,
		dialect:    db.Dialector.Name(),
		ledger:     ledger,
		migrations: opts.Migrations,
		logger:     logger,
		identity:   make(map[identityKey]Entity),
	}

	if m.dialect == DialectSQLite {
		if err := m.configureSQLite(); err != nil {
			m.Close()
			return nil, err
		}
	}

	return m, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, errors.New("dsn is required")
	}
	switch driver {
	case "", DialectSQLite:
		return sqlite.Open(dsn), nil
	case DialectPostgres:
		return postgres.Open(dsn), nil
	case DialectMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// configureSQLite pins the pool to one connection and applies pragmas.
// PRAGMA foreign_keys is per connection, so a larger pool would let
// truncation toggle it on a connection the DELETEs never use.
func (m *Manager) configureSQLite() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if err := m.db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the GORM handle for queries.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Dialect returns the backend family: sqlite, postgres or mysql.
func (m *Manager) Dialect() string {
	return m.dialect
}

// MigrationLedger returns the ledger table name.
func (m *Manager) MigrationLedger() string {
	return m.ledger
}

// Add schedules e for insert-or-update on the next Flush and places it in
// the identity cache.
func (m *Manager) Add(e Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, e)
	m.identity[identityKey{table: e.TableName(), id: e.EntityID()}] = e
}

// Remember places a loaded entity in the identity cache.
func (m *Manager) Remember(e Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity[identityKey{table: e.TableName(), id: e.EntityID()}] = e
}

// Lookup returns the cached entity for table and id.
func (m *Manager) Lookup(table, id string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.identity[identityKey{table: table, id: id}]
	return e, ok
}

// Pending returns the number of entities waiting for Flush.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// IdentityCacheSize returns the number of cached entities.
func (m *Manager) IdentityCacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.identity)
}

// OnFlush registers fn to run after every successful Flush that wrote at
// least one entity.
func (m *Manager) OnFlush(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Flush writes all pending entities in one transaction. On failure nothing
// is written and the entities stay pending.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range pending {
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(e).Error; err != nil {
				return fmt.Errorf("write %s %q: %w", e.TableName(), e.EntityID(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	m.mu.Lock()
	m.pending = m.pending[len(pending):]
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	m.logger.Debug("flushed pending entities", "count", len(pending))
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// DiscardPending drops every entity waiting for Flush without writing it.
// Entities already in the identity cache stay there until
// ClearIdentityCache.
func (m *Manager) DiscardPending() {
	m.mu.Lock()
	n := len(m.pending)
	m.pending = nil
	m.mu.Unlock()

	if n > 0 {
		m.logger.Debug("discarded pending entities", "count", n)
	}
}

// ClearIdentityCache forgets every cached entity. Pending entities are kept;
// see DiscardPending.
func (m *Manager) ClearIdentityCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = make(map[identityKey]Entity)
}

// ExecRaw executes sql as is.
func (m *Manager) ExecRaw(ctx context.Context, sql string) error {
	if err := m.db.WithContext(ctx).Exec(sql).Error; err != nil {
		return fmt.Errorf("exec %q: %w", sql, err)
	}
	return nil
}

// CountRows returns the number of rows in table.
func (m *Manager) CountRows(ctx context.Context, table string) (int64, error) {
	if !validIdentifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int64
	if err := m.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// SchemaTables lists user tables, ledger included, sorted by name.
func (m *Manager) SchemaTables(ctx context.Context) ([]string, error) {
	tables, err := m.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	result := make([]string, 0, len(tables))
	for _, name := range tables {
		if m.dialect == DialectSQLite && strings.HasPrefix(name, "sqlite_") {
			continue
		}
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// TeardownSchema drops every table, the ledger included, and discards the
// unit of work.
func (m *Manager) TeardownSchema(ctx context.Context) error {
	tables, err := m.SchemaTables(ctx)
	if err != nil {
		return fmt.Errorf("teardown: %w", err)
	}

	if len(tables) > 0 {
		if err := m.dropTables(ctx, tables); err != nil {
			return fmt.Errorf("teardown: %w", err)
		}
	}

	m.mu.Lock()
	m.pending = nil
	m.identity = make(map[identityKey]Entity)
	m.mu.Unlock()

	m.logger.Info("schema torn down", "tables", len(tables))
	return nil
}

func (m *Manager) dropTables(ctx context.Context, tables []string) (err error) {
	db := m.db.WithContext(ctx)

	if m.dialect == DialectSQLite {
		if err := db.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
			return err
		}
		defer func() {
			if restoreErr := db.Exec("PRAGMA foreign_keys = ON").Error; restoreErr != nil && err == nil {
				err = restoreErr
			}
		}()
	}

	names := make([]any, len(tables))
	for i, t := range tables {
		names[i] = t
	}
	return db.Migrator().DropTable(names...)
}
