package security

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Policy declares the roles that must always exist.
type Policy struct {
	// Roles are seeded into the repository the first time the policy
	// service is used after a reset.
	Roles []RoleDecl `yaml:"roles"`
}

// RoleDecl is one declared role.
type RoleDecl struct {
	Identifier  string `yaml:"identifier"`
	Description string `yaml:"description,omitempty"`
}

// LoadPolicy reads and parses a policy YAML file.
// Unknown fields, duplicate identifiers and empty identifiers are errors.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML from data.
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&policy); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validatePolicy(&policy); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return &policy, nil
}

func validatePolicy(p *Policy) error {
	seen := make(map[string]bool, len(p.Roles))
	for i, decl := range p.Roles {
		if decl.Identifier == "" {
			return fmt.Errorf("roles[%d]: identifier is required", i)
		}
		if seen[decl.Identifier] {
			return fmt.Errorf("roles[%d]: duplicate identifier %q", i, decl.Identifier)
		}
		seen[decl.Identifier] = true
	}
	return nil
}

// PolicyService answers role lookups from an in-memory cache.
//
// The cache goes stale whenever the roles table is truncated, so the harness
// calls Reset after every schema reset and every persist.
type PolicyService struct {
	repo     *RoleRepository
	declared []RoleDecl

	mu     sync.Mutex
	cache  map[string]*Role
	seeded bool
}

// NewPolicyService creates a service over repo. policy may be nil.
func NewPolicyService(repo *RoleRepository, policy *Policy) *PolicyService {
	s := &PolicyService{
		repo:  repo,
		cache: make(map[string]*Role),
	}
	if policy != nil {
		s.declared = append(s.declared, policy.Roles...)
	}
	return s
}

// GetRole returns the role with identifier or ErrRoleNotFound.
func (s *PolicyService) GetRole(ctx context.Context, identifier string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.seedLocked(ctx); err != nil {
		return nil, err
	}

	if role, ok := s.cache[identifier]; ok {
		return role, nil
	}

	role, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	s.cache[identifier] = role
	return role, nil
}

// HasRole reports whether a role with identifier exists.
func (s *PolicyService) HasRole(ctx context.Context, identifier string) (bool, error) {
	_, err := s.GetRole(ctx, identifier)
	if errors.Is(err, ErrRoleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CachedRoles returns the number of cached roles.
func (s *PolicyService) CachedRoles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Reset empties the cache. Declared roles are seeded again on next use.
func (s *PolicyService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Role)
	s.seeded = false
}

func (s *PolicyService) seedLocked(ctx context.Context) error {
	if s.seeded {
		return nil
	}
	for _, decl := range s.declared {
		role, err := s.repo.FindByIdentifier(ctx, decl.Identifier)
		if errors.Is(err, ErrRoleNotFound) {
			role = &Role{Identifier: decl.Identifier, Description: decl.Description}
			if err := s.repo.Add(role); err != nil {
				return fmt.Errorf("seed role %s: %w", decl.Identifier, err)
			}
		} else if err != nil {
			return fmt.Errorf("seed role %s: %w", decl.Identifier, err)
		}
		s.cache[decl.Identifier] = role
	}
	s.seeded = true
	return nil
}
