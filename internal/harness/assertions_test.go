package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOutput(t *testing.T, output string) *Scenario {
	t.Helper()
	env := newTestEnv(t)
	env.disp.commands["print"] = func(w io.Writer, args []string) error {
		_, err := io.WriteString(w, output)
		return err
	}
	sc := env.suite.NewScenario()
	_, err := sc.RunCommand(context.Background(), "print")
	require.NoError(t, err)
	return sc
}

func TestAssertOutputContainsLine_ExactLineOnly(t *testing.T) {
	sc := runOutput(t, "Usage:\n  command\nAvailable commands:\n  help\n")

	require.NoError(t, sc.AssertOutputContainsLine("Available commands:"))
	require.NoError(t, sc.AssertOutputContainsLine("  help"))

	err := sc.AssertOutputContainsLine("Available commands")
	require.Error(t, err)
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, TypeOutputLine, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "4 lines")

	// Leading whitespace is significant.
	assert.Error(t, sc.AssertOutputContainsLine("help"))
}

func TestAssertOutputContains_Substring(t *testing.T) {
	sc := runOutput(t, "Usage:\n  command\nAvailable commands:\n")

	require.NoError(t, sc.AssertOutputContains("Available commands"))
	require.NoError(t, sc.AssertOutputContains("able comm"))
	// Substrings may span lines; exact line matches may not.
	require.NoError(t, sc.AssertOutputContains("Usage:\n  command"))
	assert.Error(t, sc.AssertOutputContainsLine("Usage:\n  command"))

	err := sc.AssertOutputContains("Unavailable")
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, TypeOutputContains, assertErr.Type)
}

func TestAssertOutput_CRLFAndUnicode(t *testing.T) {
	// "é" precomposed in the output, decomposed in the expectation.
	sc := runOutput(t, "Caf\u00e9 created.\r\nDone\r\n")

	require.NoError(t, sc.AssertOutputContainsLine("Done"))
	require.NoError(t, sc.AssertOutputContainsLine("Cafe\u0301 created."))
	require.NoError(t, sc.AssertOutputContains("Cafe\u0301"))
}

func TestAssertOutput_FailedCommandErrorLine(t *testing.T) {
	env := newTestEnv(t)
	sc := env.suite.NewScenario()
	_, err := sc.RunCommand(context.Background(), "fail")
	require.NoError(t, err)

	require.NoError(t, sc.AssertOutputContainsLine("Error: command failed on purpose"))
	require.NoError(t, sc.AssertOutputContains("partial output"))
}

func TestAssertOutput_NoCommandRun(t *testing.T) {
	sc := newTestEnv(t).suite.NewScenario()
	assert.Error(t, sc.AssertOutputContainsLine("anything"))
	assert.Error(t, sc.AssertOutputContains("anything"))
	require.NoError(t, sc.AssertOutputContains(""))
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     TypeOutputLine,
		Expected: `a line equal to "x"`,
		Actual:   "no match among 2 lines",
		Output:   "a\nb\n",
	}
	want := "Assertion failed: output_line\n" +
		"  Expected: a line equal to \"x\"\n" +
		"  Actual: no match among 2 lines\n" +
		"\nCommand output:\n" +
		"  | a\n" +
		"  | b\n"
	assert.Equal(t, want, err.Error())
}

type fakeCounter map[string]int64

func (f fakeCounter) CountRows(ctx context.Context, table string) (int64, error) {
	n, ok := f[table]
	if !ok {
		return 0, fmt.Errorf("no such table: %s", table)
	}
	return n, nil
}

func TestAssertTableRows(t *testing.T) {
	ctx := context.Background()
	counter := fakeCounter{"roles": 2}

	require.NoError(t, AssertTableRows(ctx, counter, "roles", 2))

	err := AssertTableRows(ctx, counter, "roles", 0)
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, TypeTableRows, assertErr.Type)
	assert.Equal(t, "2 rows", assertErr.Actual)

	err = AssertTableRows(ctx, counter, "roles; DROP TABLE roles", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
	assert.False(t, errors.As(err, &assertErr))

	err = AssertTableRows(ctx, counter, "missing", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}
