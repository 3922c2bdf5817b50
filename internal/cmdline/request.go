// Package cmdline turns a single command line of text into a structured
// request the runtime can dispatch.
package cmdline

import (
	"errors"
	"fmt"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// ErrEmpty is returned by Parse for blank command lines.
var ErrEmpty = errors.New("empty command line")

// Request is a parsed command invocation.
type Request struct {
	// Line is the original text.
	Line string

	// Command is the first word (e.g. "role:create").
	Command string

	// Args are the remaining words, quotes removed.
	Args []string
}

// Argv returns the command followed by its arguments.
func (r Request) Argv() []string {
	argv := make([]string, 0, len(r.Args)+1)
	argv = append(argv, r.Command)
	return append(argv, r.Args...)
}

// String returns the original command line.
func (r Request) String() string {
	return r.Line
}

// ParseError reports a malformed command line.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse command %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse splits line with POSIX shell quoting rules.
func Parse(line string) (Request, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Request{}, &ParseError{Line: line, Err: ErrEmpty}
	}

	words, err := shlex.Split(trimmed, true)
	if err != nil {
		return Request{}, &ParseError{Line: line, Err: err}
	}
	if len(words) == 0 {
		return Request{}, &ParseError{Line: line, Err: ErrEmpty}
	}

	return Request{
		Line:    line,
		Command: words[0],
		Args:    words[1:],
	}, nil
}
