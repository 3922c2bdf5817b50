package harness

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/stagehand/internal/logging"
)

// DefaultFixturesTag marks scenarios that need a database reset.
const DefaultFixturesTag = "@fixtures"

// Options configure a Suite.
type Options struct {
	// FixturesTag selects scenarios that reset the database. Defaults to
	// DefaultFixturesTag. The leading "@" is optional.
	FixturesTag string

	// Logger receives harness diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Suite owns the runtime handle and the schema snapshot for one test run.
//
// A Suite is safe for concurrent use, but scenarios are expected to run one
// after another.
type Suite struct {
	bootstrap   BootstrapFunc
	fixturesTag string
	logger      *slog.Logger

	mu     sync.Mutex
	handle *Components
	fatal  error
	ended  bool
	schema schemaCache
}

// NewSuite creates a suite that boots the runtime with bootstrap on first
// use.
func NewSuite(bootstrap BootstrapFunc, opts Options) *Suite {
	tag := opts.FixturesTag
	if tag == "" {
		tag = DefaultFixturesTag
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Suite{
		bootstrap:   bootstrap,
		fixturesTag: normalizeTag(tag),
		logger:      logger,
	}
}

// OnSuiteStart boots the runtime unless it is already booted. A bootstrap
// failure is remembered and returned by every later call.
func (s *Suite) OnSuiteStart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.componentsLocked(ctx)
	return err
}

// OnSuiteEnd shuts the runtime down. Only the first call does anything.
func (s *Suite) OnSuiteEnd(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil
	}
	s.ended = true

	h := s.handle
	s.handle = nil
	if h == nil || h.Shutdown == nil {
		return nil
	}
	s.logger.DebugContext(ctx, "shutting down runtime")
	return h.Shutdown()
}

// Err returns the fatal error that aborted the suite, if any.
func (s *Suite) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Components returns the booted runtime handle, nil before OnSuiteStart.
func (s *Suite) Components() *Components {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Snapshot returns the cached schema snapshot.
func (s *Suite) Snapshot() (SchemaSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema.get()
}

// FixturesTag returns the normalized tag that triggers a fixture reset.
func (s *Suite) FixturesTag() string {
	return s.fixturesTag
}

// NewScenario starts per-scenario state. It does not touch the runtime.
func (s *Suite) NewScenario() *Scenario {
	return &Scenario{suite: s}
}

func (s *Suite) components(ctx context.Context) (*Components, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.componentsLocked(ctx)
}

func (s *Suite) componentsLocked(ctx context.Context) (*Components, error) {
	if s.fatal != nil {
		return nil, s.fatal
	}
	if s.ended {
		return nil, errors.New("suite already ended")
	}
	if s.handle != nil {
		return s.handle, nil
	}

	h, err := s.bootstrap(ctx)
	if err == nil {
		err = h.validate()
		if err != nil && h != nil && h.Shutdown != nil {
			// The handle is rejected, so OnSuiteEnd never sees it.
			if shutErr := h.Shutdown(); shutErr != nil {
				s.logger.WarnContext(ctx, "shutdown of rejected runtime failed", "error", shutErr)
			}
		}
	}
	if err != nil {
		return nil, s.failLocked(&FatalError{Op: "bootstrap", Err: err})
	}

	s.handle = h
	s.logger.DebugContext(ctx, "runtime booted")
	return h, nil
}

// failLocked records err as the suite's fatal error.
func (s *Suite) failLocked(err error) error {
	s.fatal = err
	s.logger.Error("suite aborted", "error", err)
	return err
}

func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if !strings.HasPrefix(tag, "@") {
		tag = "@" + tag
	}
	return tag
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if normalizeTag(tag) == want {
			return true
		}
	}
	return false
}
