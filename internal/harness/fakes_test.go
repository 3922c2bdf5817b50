package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/roach88/stagehand/internal/capture"
	"github.com/roach88/stagehand/internal/cmdline"
	"github.com/roach88/stagehand/internal/fixture"
)

// recorder is a shared, ordered log of collaborator calls.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakePersistence struct {
	rec     *recorder
	dialect string
	ledger  string
	tables  []string

	applyErrs   []error // consumed one per ApplyMigrations call
	teardownErr error
	tablesErr   error
	flushErr    error
	execErrOn   string

	mu    sync.Mutex
	execs []string
}

func (p *fakePersistence) Flush(ctx context.Context) error {
	p.rec.add("flush")
	return p.flushErr
}

func (p *fakePersistence) ClearIdentityCache() {
	p.rec.add("clear")
}

func (p *fakePersistence) DiscardPending() {
	p.rec.add("discard")
}

func (p *fakePersistence) TeardownSchema(ctx context.Context) error {
	p.rec.add("teardown")
	return p.teardownErr
}

func (p *fakePersistence) ApplyMigrations(ctx context.Context) error {
	p.rec.add("migrate")
	if len(p.applyErrs) == 0 {
		return nil
	}
	err := p.applyErrs[0]
	p.applyErrs = p.applyErrs[1:]
	return err
}

func (p *fakePersistence) SchemaTables(ctx context.Context) ([]string, error) {
	p.rec.add("tables")
	return p.tables, p.tablesErr
}

func (p *fakePersistence) ExecRaw(ctx context.Context, sql string) error {
	p.rec.add("exec")
	p.mu.Lock()
	p.execs = append(p.execs, sql)
	p.mu.Unlock()
	if p.execErrOn != "" && sql == p.execErrOn {
		return fmt.Errorf("exec %q: boom", sql)
	}
	return nil
}

func (p *fakePersistence) Dialect() string         { return p.dialect }
func (p *fakePersistence) MigrationLedger() string { return p.ledger }

func (p *fakePersistence) takeExecs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	execs := p.execs
	p.execs = nil
	return execs
}

// commandFunc is one fake command. It writes to the runtime console.
type commandFunc func(w io.Writer, args []string) error

type fakeDispatcher struct {
	out      io.Writer
	commands map[string]commandFunc
}

func (d *fakeDispatcher) BuildRequest(line string) (cmdline.Request, error) {
	req, err := cmdline.Parse(line)
	if err != nil {
		return cmdline.Request{}, err
	}
	if _, ok := d.commands[req.Command]; !ok {
		return cmdline.Request{}, fmt.Errorf("unknown command %q", req.Command)
	}
	return req, nil
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, req cmdline.Request) error {
	return d.commands[req.Command](d.out, req.Args)
}

type countingFactory struct {
	rec    *recorder
	resets int
}

func (f *countingFactory) Reset() {
	f.resets++
	f.rec.add("factory")
}

type countingPolicy struct {
	rec    *recorder
	resets int
}

func (p *countingPolicy) Reset() {
	p.resets++
	p.rec.add("policy")
}

type countingRoles struct {
	rec    *recorder
	clears int
}

func (r *countingRoles) ClearPendingNewRoles() {
	r.clears++
	r.rec.add("roles")
}

// testEnv is a suite wired to fakes.
type testEnv struct {
	rec       *recorder
	persist   *fakePersistence
	disp      *fakeDispatcher
	out       *capture.Capture
	sink      *bytes.Buffer
	factories []*countingFactory
	policy    *countingPolicy
	roles     *countingRoles
	suite     *Suite

	boots     int
	shutdowns int
}

func defaultCommands() map[string]commandFunc {
	return map[string]commandFunc{
		"help": func(w io.Writer, args []string) error {
			fmt.Fprintln(w, "Usage:")
			fmt.Fprintln(w, "  command [options]")
			fmt.Fprintln(w, "Available commands:")
			fmt.Fprintln(w, "  help  List commands")
			return nil
		},
		"echo": func(w io.Writer, args []string) error {
			for _, a := range args {
				fmt.Fprintln(w, a)
			}
			return nil
		},
		"fail": func(w io.Writer, args []string) error {
			fmt.Fprint(w, "partial output")
			return fmt.Errorf("command failed on purpose")
		},
		"panic": func(w io.Writer, args []string) error {
			fmt.Fprintln(w, "about to panic")
			panic("kaboom")
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rec := &recorder{}
	sink := &bytes.Buffer{}
	out := capture.New(sink)
	env := &testEnv{
		rec: rec,
		persist: &fakePersistence{
			rec:     rec,
			dialect: DialectPostgres,
			ledger:  "migration_status",
			tables:  []string{"roles", "migration_status", "accounts"},
		},
		disp:      &fakeDispatcher{out: out, commands: defaultCommands()},
		out:       out,
		sink:      sink,
		factories: []*countingFactory{{rec: rec}, {rec: rec}},
		policy:    &countingPolicy{rec: rec},
		roles:     &countingRoles{rec: rec},
	}

	registry := fixture.NewRegistry()
	registry.MustRegister("roles", env.factories[0])
	registry.MustRegister("accounts", env.factories[1])

	env.suite = NewSuite(func(ctx context.Context) (*Components, error) {
		env.boots++
		return &Components{
			Dispatcher:  env.disp,
			Persistence: env.persist,
			Output:      env.out,
			Fixtures:    registry,
			Policy:      env.policy,
			Roles:       env.roles,
			Shutdown: func() error {
				env.shutdowns++
				return nil
			},
		}, nil
	}, Options{})

	t.Cleanup(func() { env.suite.OnSuiteEnd(context.Background()) })
	return env
}

func (e *testEnv) factoryResets() []int {
	resets := make([]int, len(e.factories))
	for i, f := range e.factories {
		resets[i] = f.resets
	}
	return resets
}
