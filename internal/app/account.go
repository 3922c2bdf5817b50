package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roach88/stagehand/internal/persistence"
	"github.com/roach88/stagehand/internal/security"
)

// ErrAccountExists is returned when an account name is already taken.
var ErrAccountExists = errors.New("account already exists")

// Account is a user account holding exactly one role.
type Account struct {
	ID             string `gorm:"primaryKey;size:36"`
	Name           string `gorm:"size:191;not null;uniqueIndex"`
	RoleIdentifier string `gorm:"size:191;not null;index"`
	CreatedAt      time.Time

	// Role is declared for the foreign key only; Flush never writes it.
	Role *security.Role `gorm:"foreignKey:RoleIdentifier;references:Identifier;constraint:OnDelete:CASCADE"`
}

// TableName implements persistence.Entity.
func (Account) TableName() string { return "accounts" }

// EntityID implements persistence.Entity.
func (a *Account) EntityID() string { return a.ID }

// Migrations returns the schema of the sample runtime in apply order.
func Migrations() []persistence.Migration {
	return []persistence.Migration{
		security.Migration(),
		{
			ID: "0002_create_accounts",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&Account{})
			},
		},
	}
}

// CreateRole schedules a new role. It fails if the role already exists.
func (rt *Runtime) CreateRole(ctx context.Context, identifier, description string) (*security.Role, error) {
	identifier = strings.TrimSpace(identifier)
	exists, err := rt.policy.HasRole(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("role %q already exists", identifier)
	}

	role := &security.Role{Identifier: identifier, Description: description}
	if err := rt.roles.Add(role); err != nil {
		return nil, err
	}
	rt.logger.Info("role created", "identifier", identifier)
	return role, nil
}

// CreateAccount schedules a new account holding roleIdentifier.
func (rt *Runtime) CreateAccount(ctx context.Context, name, roleIdentifier string) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("account name is required")
	}

	role, err := rt.policy.GetRole(ctx, roleIdentifier)
	if err != nil {
		return nil, err
	}

	var count int64
	err = rt.store.DB().WithContext(ctx).Model(&Account{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check account %s: %w", name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, name)
	}

	account := &Account{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Name:           name,
		RoleIdentifier: role.Identifier,
	}
	rt.store.Add(account)
	rt.logger.Info("account created", "name", name, "role", role.Identifier)
	return account, nil
}

// ListAccounts returns persisted accounts ordered by name.
func (rt *Runtime) ListAccounts(ctx context.Context) ([]*Account, error) {
	var accounts []*Account
	if err := rt.store.DB().WithContext(ctx).Order("name").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
