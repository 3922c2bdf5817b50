package harness

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Scenario is the state of one scenario: the last command result.
type Scenario struct {
	suite *Suite

	mu      sync.Mutex
	last    CommandResult
	hasLast bool
}

// OnScenarioStart boots the runtime if needed and, when tags contain the
// fixtures tag, resets the database and every cache.
func (sc *Scenario) OnScenarioStart(ctx context.Context, tags []string) error {
	if _, err := sc.suite.components(ctx); err != nil {
		return err
	}

	sc.mu.Lock()
	sc.last = CommandResult{}
	sc.hasLast = false
	sc.mu.Unlock()

	if !hasTag(tags, sc.suite.fixturesTag) {
		return nil
	}
	return sc.suite.resetFixtures(ctx)
}

// RunCommand runs line against the runtime with output captured.
//
// A command that fails to parse or dispatch is not an error here: the
// failure is carried in the result's Err and appended to its Output, so the
// scenario can assert on it. The error return is reserved for the harness
// itself: no runtime, or a flush failure after a successful command.
//
// Output forwarding is restored on every exit path, panics included.
func (sc *Scenario) RunCommand(ctx context.Context, line string) (CommandResult, error) {
	h, err := sc.suite.components(ctx)
	if err != nil {
		return CommandResult{Line: line}, err
	}

	out := h.Output
	out.Reset()
	out.Start()
	out.Suppress()
	defer func() {
		out.Stop()
		out.Restore()
	}()

	result := CommandResult{Line: line}
	if cmdErr := dispatch(ctx, h.Dispatcher, line); cmdErr != nil {
		result.Err = cmdErr
		result.Output = appendLine(out.Captured(), errorLine(cmdErr))
		sc.remember(result)
		sc.suite.logger.DebugContext(ctx, "command failed", "line", line, "error", cmdErr)
		return result, nil
	}

	result.Output = out.Captured()
	sc.remember(result)

	if err := persistAll(ctx, h); err != nil {
		return result, &PersistError{Line: line, Err: err}
	}
	return result, nil
}

// PersistAll flushes pending writes, clears the identity cache and resets
// every fixture factory and role cache.
func (sc *Scenario) PersistAll(ctx context.Context) error {
	h, err := sc.suite.components(ctx)
	if err != nil {
		return err
	}
	return persistAll(ctx, h)
}

// LastResult returns the result of the most recent RunCommand.
func (sc *Scenario) LastResult() (CommandResult, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.last, sc.hasLast
}

// PrintLastOutput writes the last captured output to w.
func (sc *Scenario) PrintLastOutput(w io.Writer) error {
	last, ok := sc.LastResult()
	if !ok {
		_, err := fmt.Fprintln(w, "(no command has been run)")
		return err
	}
	_, err := io.WriteString(w, last.Output)
	return err
}

func (sc *Scenario) remember(r CommandResult) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.last = r
	sc.hasLast = true
}

// dispatch builds and runs the request, turning panics into a DispatchError.
func dispatch(ctx context.Context, d Dispatcher, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{Line: line, Err: fmt.Errorf("panic: %v", r), Panicked: true}
		}
	}()

	req, err := d.BuildRequest(line)
	if err != nil {
		return &CommandParseError{Line: line, Err: err}
	}
	if err := d.Dispatch(ctx, req); err != nil {
		return &DispatchError{Line: line, Err: err}
	}
	return nil
}

// persistAll must run resetFactories after the flush and clear, never before.
func persistAll(ctx context.Context, h *Components) error {
	if err := h.Persistence.Flush(ctx); err != nil {
		return err
	}
	h.Persistence.ClearIdentityCache()
	resetFactories(h)
	return nil
}

func appendLine(output, line string) string {
	if output != "" && output[len(output)-1] != '\n' {
		output += "\n"
	}
	return output + line + "\n"
}
