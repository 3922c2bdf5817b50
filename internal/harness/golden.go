package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGoldenStatements compares SQL statements, one per line, against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGoldenStatements(t *testing.T, name string, stmts []string) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(strings.Join(stmts, "\n")+"\n"))
}
