package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrSchemaExists marks a migration that failed because an object it creates
// is already present, i.e. the live schema is ahead of the ledger.
var ErrSchemaExists = errors.New("schema object already exists")

// Migration is one schema change. Up runs inside a transaction together with
// the ledger insert.
type Migration struct {
	ID string
	Up func(tx *gorm.DB) error
}

// ApplyMigrations runs every migration whose ID is not yet in the ledger, in
// order. It stops at the first failure.
func (m *Manager) ApplyMigrations(ctx context.Context) error {
	db := m.db.WithContext(ctx)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(191) PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`, m.ledger)
	if err := db.Exec(createSQL).Error; err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}

	applied := 0
	for _, mig := range m.migrations {
		if mig.ID == "" || mig.Up == nil {
			return fmt.Errorf("migration %q: id and up are required", mig.ID)
		}

		done, err := m.isApplied(db, mig.ID)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", mig.ID, err)
		}
		if done {
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Exec(
				fmt.Sprintf("INSERT INTO %s (id, applied_at) VALUES (?, ?)", m.ledger),
				mig.ID,
				time.Now().UTC().UnixMilli(),
			).Error
		})
		if err != nil {
			if IsAlreadyExists(err) {
				return fmt.Errorf("apply migration %s: %w: %w", mig.ID, ErrSchemaExists, err)
			}
			return fmt.Errorf("apply migration %s: %w", mig.ID, err)
		}
		applied++
	}

	m.logger.Info("migrations applied", "applied", applied, "total", len(m.migrations))
	return nil
}

// AppliedMigrations returns ledger IDs in application order.
func (m *Manager) AppliedMigrations(ctx context.Context) ([]string, error) {
	var ids []string
	err := m.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT id FROM %s ORDER BY applied_at, id", m.ledger)).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return ids, nil
}

func (m *Manager) isApplied(db *gorm.DB, id string) (bool, error) {
	var count int64
	err := db.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", m.ledger), id).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsAlreadyExists reports whether err says a table, index or column is
// already present.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code != sqlite3.ErrError {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
