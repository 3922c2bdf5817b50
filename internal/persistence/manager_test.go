package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "unknown driver", opts: Options{Driver: "oracle", DSN: "x"}, wantErr: "unsupported driver"},
		{name: "empty dsn", opts: Options{Driver: DialectSQLite}, wantErr: "dsn is required"},
		{name: "bad ledger", opts: Options{Driver: DialectSQLite, DSN: "x.db", Ledger: "a b"}, wantErr: "invalid ledger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpen_SQLiteDefaults(t *testing.T) {
	m := createTestManager(t, nil)

	assert.Equal(t, DialectSQLite, m.Dialect())
	assert.Equal(t, DefaultLedger, m.MigrationLedger())

	var fk int
	require.NoError(t, m.DB().Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}

func TestManager_AddFlushLookup(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	parent := &parentRow{ID: "p1", Name: "first"}
	m.Add(parent)
	m.Add(&childRow{ID: "c1", ParentID: "p1"})

	assert.Equal(t, 2, m.Pending())
	cached, ok := m.Lookup("parents", "p1")
	require.True(t, ok)
	assert.Same(t, parent, cached)

	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, int64(1), countRows(t, m, "parents"))
	assert.Equal(t, int64(1), countRows(t, m, "children"))

	// Flushing an updated entity upserts it.
	parent.Name = "renamed"
	m.Add(parent)
	require.NoError(t, m.Flush(ctx))

	var name string
	require.NoError(t, m.DB().Raw("SELECT name FROM parents WHERE id = ?", "p1").Scan(&name).Error)
	assert.Equal(t, "renamed", name)
	assert.Equal(t, int64(1), countRows(t, m, "parents"))
}

func TestManager_FlushFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	// Violates the foreign key: no such parent.
	m.Add(&childRow{ID: "orphan", ParentID: "missing"})

	err := m.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush")
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, int64(0), countRows(t, m, "children"))
}

func TestManager_FlushListeners(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	calls := 0
	m.OnFlush(func() { calls++ })

	// Nothing pending: listeners are not called.
	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, 0, calls)

	m.Add(&parentRow{ID: "p1"})
	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, 1, calls)
}

func TestManager_ClearIdentityCache(t *testing.T) {
	m := createTestManager(t, nil)
	m.Remember(&parentRow{ID: "p1"})
	m.Add(&parentRow{ID: "p2"})
	assert.Equal(t, 2, m.IdentityCacheSize())

	m.ClearIdentityCache()

	assert.Equal(t, 0, m.IdentityCacheSize())
	_, ok := m.Lookup("parents", "p1")
	assert.False(t, ok)
	// Pending work survives a cache clear.
	assert.Equal(t, 1, m.Pending())
}

func TestManager_DiscardPendingUnblocksFlush(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	m.Add(&childRow{ID: "orphan", ParentID: "missing"})
	require.Error(t, m.Flush(ctx))

	m.DiscardPending()
	assert.Equal(t, 0, m.Pending())
	// The cached entity is left for ClearIdentityCache.
	_, ok := m.Lookup("children", "orphan")
	assert.True(t, ok)

	m.Add(&parentRow{ID: "p1"})
	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, int64(1), countRows(t, m, "parents"))
	assert.Equal(t, int64(0), countRows(t, m, "children"))
}

func TestManager_SchemaTablesAndTeardown(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	tables, err := m.SchemaTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"children", DefaultLedger, "parents"}, tables)

	m.Add(&parentRow{ID: "p1"})
	require.NoError(t, m.Flush(ctx))
	m.Add(&childRow{ID: "c1", ParentID: "p1"})
	require.NoError(t, m.Flush(ctx))

	require.NoError(t, m.TeardownSchema(ctx))

	tables, err = m.SchemaTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.Equal(t, 0, m.IdentityCacheSize())

	// Foreign keys are enforced again after teardown.
	var fk int
	require.NoError(t, m.DB().Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}

func TestManager_ExecRaw(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	require.NoError(t, m.ExecRaw(ctx, `INSERT INTO parents (id, name) VALUES ('p1', 'x')`))
	assert.Equal(t, int64(1), countRows(t, m, "parents"))

	err := m.ExecRaw(ctx, "NOT SQL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `exec "NOT SQL"`)
}

func TestManager_CountRows(t *testing.T) {
	ctx := context.Background()
	m := createTestManager(t, testMigrations())
	require.NoError(t, m.ApplyMigrations(ctx))

	m.Add(&parentRow{ID: "p1"})
	m.Add(&parentRow{ID: "p2"})
	require.NoError(t, m.Flush(ctx))

	n, err := m.CountRows(ctx, "parents")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = m.CountRows(ctx, "parents; DROP TABLE parents")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")

	_, err = m.CountRows(ctx, "missing")
	require.Error(t, err)
}

func TestManager_CloseIdempotentOnZeroValue(t *testing.T) {
	var m Manager
	assert.NoError(t, m.Close())
}

func TestIsAlreadyExists(t *testing.T) {
	assert.False(t, IsAlreadyExists(nil))
	assert.True(t, IsAlreadyExists(errors.New(`relation "roles" already exists`)))
	assert.True(t, IsAlreadyExists(errors.New("Error 1050 (42S01): Table 'roles' already exists")))
	assert.True(t, IsAlreadyExists(errors.New("duplicate column name: x")))
	assert.False(t, IsAlreadyExists(errors.New("no such table: roles")))
}
