package security

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/roach88/stagehand/internal/persistence"
)

// RoleRepository loads and stores roles through the persistence manager.
//
// Roles added since the last flush are tracked in memory so lookups see them
// before they reach the database. The tracking is cleared on every flush and
// by ClearPendingNewRoles.
type RoleRepository struct {
	store *persistence.Manager

	mu       sync.Mutex
	newRoles map[string]*Role
}

// NewRoleRepository creates a repository bound to store.
func NewRoleRepository(store *persistence.Manager) *RoleRepository {
	r := &RoleRepository{
		store:    store,
		newRoles: make(map[string]*Role),
	}
	store.OnFlush(r.ClearPendingNewRoles)
	return r
}

// Add schedules role for insertion on the next flush.
func (r *RoleRepository) Add(role *Role) error {
	role.Identifier = strings.TrimSpace(role.Identifier)
	if role.Identifier == "" {
		return errors.New("role identifier is required")
	}

	r.mu.Lock()
	r.newRoles[role.Identifier] = role
	r.mu.Unlock()

	r.store.Add(role)
	return nil
}

// FindByIdentifier returns the role with identifier, looking at pending roles,
// then the identity cache, then the database.
func (r *RoleRepository) FindByIdentifier(ctx context.Context, identifier string) (*Role, error) {
	r.mu.Lock()
	role, ok := r.newRoles[identifier]
	r.mu.Unlock()
	if ok {
		return role, nil
	}

	if cached, ok := r.store.Lookup(Role{}.TableName(), identifier); ok {
		if role, ok := cached.(*Role); ok {
			return role, nil
		}
	}

	var loaded Role
	err := r.store.DB().WithContext(ctx).Where("identifier = ?", identifier).First(&loaded).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("find role %s: %w", identifier, err)
	}

	r.store.Remember(&loaded)
	return &loaded, nil
}

// FindAll returns persisted and pending roles ordered by identifier.
func (r *RoleRepository) FindAll(ctx context.Context) ([]*Role, error) {
	var rows []*Role
	if err := r.store.DB().WithContext(ctx).Order("identifier").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, role := range rows {
		seen[role.Identifier] = true
	}

	r.mu.Lock()
	for id, role := range r.newRoles {
		if !seen[id] {
			rows = append(rows, role)
		}
	}
	r.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Identifier < rows[j].Identifier })
	return rows, nil
}

// PendingNewRoles returns the identifiers of roles not yet flushed, sorted.
func (r *RoleRepository) PendingNewRoles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.newRoles))
	for id := range r.newRoles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearPendingNewRoles forgets roles added since the last flush.
func (r *RoleRepository) ClearPendingNewRoles() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newRoles = make(map[string]*Role)
}
