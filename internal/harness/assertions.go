package harness

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/stagehand/internal/capture"
)

// Assertion types reported in AssertionError.Type.
const (
	TypeOutputLine     = "output_line"
	TypeOutputContains = "output_contains"
	TypeTableRows      = "table_rows"
	TypeRoleExists     = "role_exists"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Output   string // Captured output the assertion ran against
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Output != "" {
		fmt.Fprintf(&buf, "\nCommand output:\n")
		for _, line := range capture.SplitLines(e.Output) {
			fmt.Fprintf(&buf, "  | %s\n", line)
		}
	}

	return buf.String()
}

// AssertOutputContainsLine checks that one line of the last output equals
// line exactly. Both sides are NFC-normalized first.
func (sc *Scenario) AssertOutputContainsLine(line string) error {
	last, _ := sc.LastResult()
	want := norm.NFC.String(line)

	lines := capture.SplitLines(last.Output)
	for _, got := range lines {
		if norm.NFC.String(got) == want {
			return nil
		}
	}

	return &AssertionError{
		Type:     TypeOutputLine,
		Expected: fmt.Sprintf("a line equal to %q", line),
		Actual:   fmt.Sprintf("no match among %d lines", len(lines)),
		Output:   last.Output,
	}
}

// AssertOutputContains checks that the last output contains substr
// anywhere, across line breaks included.
func (sc *Scenario) AssertOutputContains(substr string) error {
	last, _ := sc.LastResult()
	if strings.Contains(norm.NFC.String(last.Output), norm.NFC.String(substr)) {
		return nil
	}

	return &AssertionError{
		Type:     TypeOutputContains,
		Expected: fmt.Sprintf("output containing %q", substr),
		Actual:   "not found",
		Output:   last.Output,
	}
}

// RowCounter counts the rows of a table.
type RowCounter interface {
	CountRows(ctx context.Context, table string) (int64, error)
}

// AssertTableRows checks that table holds exactly want rows.
func AssertTableRows(ctx context.Context, rc RowCounter, table string, want int64) error {
	if !validIdentifier.MatchString(table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", table, validIdentifier.String())
	}

	got, err := rc.CountRows(ctx, table)
	if err != nil {
		return fmt.Errorf("count rows in %s: %w", table, err)
	}
	if got != want {
		return &AssertionError{
			Type:     TypeTableRows,
			Expected: fmt.Sprintf("%d rows in %s", want, table),
			Actual:   fmt.Sprintf("%d rows", got),
		}
	}
	return nil
}
