package persistence

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

type parentRow struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func (parentRow) TableName() string   { return "parents" }
func (p *parentRow) EntityID() string { return p.ID }

type childRow struct {
	ID       string `gorm:"primaryKey"`
	ParentID string
}

func (childRow) TableName() string   { return "children" }
func (c *childRow) EntityID() string { return c.ID }

// testMigrations creates parents and children with a foreign key from
// children to parents.
func testMigrations() []Migration {
	return []Migration{
		{
			ID: "0001_parents",
			Up: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE TABLE parents (id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '')`).Error
			},
		},
		{
			ID: "0002_children",
			Up: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE TABLE children (
					id TEXT PRIMARY KEY,
					parent_id TEXT NOT NULL REFERENCES parents(id)
				)`).Error
			},
		},
	}
}

// createTestManager opens a SQLite manager in a temp directory.
func createTestManager(t *testing.T, migrations []Migration) *Manager {
	t.Helper()
	m, err := Open(Options{
		Driver:     DialectSQLite,
		DSN:        filepath.Join(t.TempDir(), "test.db"),
		Migrations: migrations,
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func countRows(t *testing.T, m *Manager, table string) int64 {
	t.Helper()
	var n int64
	if err := m.DB().Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
