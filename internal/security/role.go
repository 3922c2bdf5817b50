// Package security holds roles, the role repository and the policy service
// that caches roles for the sample runtime.
package security

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/roach88/stagehand/internal/persistence"
)

// ErrRoleNotFound is returned when no role has the requested identifier.
var ErrRoleNotFound = errors.New("role not found")

// Role is a named permission group.
type Role struct {
	Identifier  string `gorm:"primaryKey;size:191"`
	Description string `gorm:"size:255;not null;default:''"`
	CreatedAt   time.Time
}

// TableName implements persistence.Entity.
func (Role) TableName() string { return "roles" }

// EntityID implements persistence.Entity.
func (r *Role) EntityID() string { return r.Identifier }

// Migration creates the roles table.
func Migration() persistence.Migration {
	return persistence.Migration{
		ID: "0001_create_roles",
		Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&Role{})
		},
	}
}
