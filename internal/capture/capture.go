// Package capture intercepts console and log output produced by the runtime
// during a command execution window.
//
// A Capture is an io.Writer. The runtime points its console and its slog
// handler at the same Capture, so everything a command prints or logs ends up
// in one buffer while interception is started. Independently of
// interception, forwarding to the real sink (usually os.Stdout) can be
// suppressed so captured output is not echoed during a test run.
//
//	c := capture.New(os.Stdout)
//	c.Reset()
//	c.Start()
//	c.Suppress()
//	defer func() {
//	    c.Stop()
//	    c.Restore()
//	}()
//
// All methods are safe for concurrent use.
package capture

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Capture records writes while started and forwards them to a sink unless
// suppressed.
type Capture struct {
	mu           sync.Mutex
	buf          bytes.Buffer
	sink         io.Writer
	intercepting bool
	suppressed   bool
}

// New creates a Capture forwarding to sink. A nil sink discards forwarded
// output.
func New(sink io.Writer) *Capture {
	if sink == nil {
		sink = io.Discard
	}
	return &Capture{sink: sink}
}

// Write implements io.Writer.
//
// Forwarding errors are reported to the caller; the intercepted copy is kept
// regardless.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.intercepting {
		c.buf.Write(p)
	}
	if c.suppressed {
		return len(p), nil
	}
	return c.sink.Write(p)
}

// Reset discards everything captured so far.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
}

// Start enables interception.
func (c *Capture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intercepting = true
}

// Stop disables interception. Captured output stays readable.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intercepting = false
}

// Suppress stops forwarding writes to the sink.
func (c *Capture) Suppress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressed = true
}

// Restore resumes forwarding writes to the sink.
func (c *Capture) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressed = false
}

// Suppressed reports whether forwarding is currently suppressed.
func (c *Capture) Suppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppressed
}

// Intercepting reports whether writes are currently recorded.
func (c *Capture) Intercepting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intercepting
}

// Captured returns the raw captured text.
func (c *Capture) Captured() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Lines returns the captured text split on newlines, without a trailing
// empty element.
func (c *Capture) Lines() []string {
	return SplitLines(c.Captured())
}

// SplitLines splits s on "\n", dropping "\r" line endings and the empty
// element produced by a trailing newline.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
