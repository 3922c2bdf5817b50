package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/stagehand/internal/capture"
)

// CommandResult is the outcome of one RunCommand call.
type CommandResult struct {
	// Line is the command line as given.
	Line string

	// Output is everything captured while the command ran. When the command
	// failed, a final "Error: <message>" line is appended.
	Output string

	// Err is a *CommandParseError or *DispatchError when the command failed.
	Err error
}

// OK reports whether the command parsed and dispatched without error.
func (r CommandResult) OK() bool {
	return r.Err == nil
}

// Lines returns Output split on newlines.
func (r CommandResult) Lines() []string {
	return capture.SplitLines(r.Output)
}

// ErrFatal matches every *FatalError via errors.Is.
var ErrFatal = errors.New("fatal harness error")

// FatalError aborts the suite: the runtime could not boot or no baseline
// schema could be established. Once returned, every later scenario start
// returns the same error.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFatal) true for any FatalError.
func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// MigrationError reports a failed migration run. Attempt is 1 for the
// first run and 2 for the retry after teardown.
type MigrationError struct {
	Attempt int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("apply migrations (attempt %d): %v", e.Attempt, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// CommandParseError reports a command line the runtime could not turn into a
// request.
type CommandParseError struct {
	Line string
	Err  error
}

func (e *CommandParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *CommandParseError) Unwrap() error {
	return e.Err
}

// DispatchError reports a command that failed or panicked while running.
type DispatchError struct {
	Line     string
	Err      error
	Panicked bool
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q: %v", e.Line, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PersistError reports a flush failure after a successful dispatch.
type PersistError struct {
	Line string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist after %q: %v", e.Line, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// errorLine is the text appended to captured output for a failed command.
func errorLine(err error) string {
	var parseErr *CommandParseError
	var dispatchErr *DispatchError
	switch {
	case errors.As(err, &parseErr):
		err = parseErr.Err
	case errors.As(err, &dispatchErr):
		err = dispatchErr.Err
	}
	return "Error: " + err.Error()
}
