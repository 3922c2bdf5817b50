// Package fixtures provides the data factories scenarios use to seed the
// sample runtime.
//
// Every factory registers itself in the runtime's fixture.Registry, so the
// harness resets them together after each persist and each schema reset.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/stagehand/internal/app"
	"github.com/roach88/stagehand/internal/fixture"
	"github.com/roach88/stagehand/internal/security"
)

// Registry names.
const (
	RolesName    = "roles"
	AccountsName = "accounts"
)

// Set holds the registered factories.
type Set struct {
	Roles    *RoleFactory
	Accounts *AccountFactory
}

// Register creates the factories for rt and registers them in rt.Fixtures().
func Register(rt *app.Runtime) (*Set, error) {
	set := &Set{
		Roles:    NewRoleFactory(rt),
		Accounts: NewAccountFactory(rt),
	}
	reg := rt.Fixtures()
	if err := reg.Register(RolesName, set.Roles); err != nil {
		return nil, err
	}
	if err := reg.Register(AccountsName, set.Accounts); err != nil {
		return nil, err
	}
	return set, nil
}

// RoleFactory creates roles. Roles without an explicit identifier are named
// ROLE_FIXTURE_1, ROLE_FIXTURE_2, ...
type RoleFactory struct {
	rt  *app.Runtime
	seq fixture.Sequence

	mu   sync.Mutex
	last *security.Role
}

// NewRoleFactory creates a role factory for rt.
func NewRoleFactory(rt *app.Runtime) *RoleFactory {
	return &RoleFactory{rt: rt}
}

// Ensure returns the role with identifier, creating it when missing.
// An empty identifier always creates a new sequenced role.
func (f *RoleFactory) Ensure(ctx context.Context, identifier string) (*security.Role, error) {
	if identifier == "" {
		identifier = fmt.Sprintf("ROLE_FIXTURE_%d", f.seq.Next())
	}

	role, err := f.rt.Policy().GetRole(ctx, identifier)
	if errors.Is(err, security.ErrRoleNotFound) {
		role, err = f.rt.CreateRole(ctx, identifier, "")
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.last = role
	f.mu.Unlock()
	return role, nil
}

// Last returns the role most recently returned by Ensure, nil after Reset.
func (f *RoleFactory) Last() *security.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Reset implements fixture.Factory.
func (f *RoleFactory) Reset() {
	f.seq.Reset()
	f.mu.Lock()
	f.last = nil
	f.mu.Unlock()
}

// AccountFactory creates accounts named account1, account2, ...
type AccountFactory struct {
	rt  *app.Runtime
	seq fixture.Sequence

	mu   sync.Mutex
	last *app.Account
}

// NewAccountFactory creates an account factory for rt.
func NewAccountFactory(rt *app.Runtime) *AccountFactory {
	return &AccountFactory{rt: rt}
}

// Create schedules n accounts holding role. Names already taken are
// skipped.
func (f *AccountFactory) Create(ctx context.Context, n int, role string) ([]*app.Account, error) {
	accounts := make([]*app.Account, 0, n)
	for len(accounts) < n {
		name := fmt.Sprintf("account%d", f.seq.Next())
		account, err := f.rt.CreateAccount(ctx, name, role)
		if errors.Is(err, app.ErrAccountExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if len(accounts) > 0 {
		f.mu.Lock()
		f.last = accounts[len(accounts)-1]
		f.mu.Unlock()
	}
	return accounts, nil
}

// Last returns the account most recently created, nil after Reset.
func (f *AccountFactory) Last() *app.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Reset implements fixture.Factory.
func (f *AccountFactory) Reset() {
	f.seq.Reset()
	f.mu.Lock()
	f.last = nil
	f.mu.Unlock()
}
