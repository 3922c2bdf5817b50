// Package harness drives a long-lived application runtime through scenarios.
//
// A Suite bootstraps the runtime once and shuts it down once. Each scenario
// gets a Scenario value that runs commands through the runtime with output
// captured, asserts on that output, and resets persistent and cached state
// between scenarios.
//
// # Lifecycle
//
//	suite := harness.NewSuite(bootstrap, harness.Options{})
//	defer suite.OnSuiteEnd(ctx)
//
//	sc := suite.NewScenario()
//	if err := sc.OnScenarioStart(ctx, []string{"@fixtures"}); err != nil {
//	    // fatal: bootstrap or schema establishment failed
//	}
//	res, err := sc.RunCommand(ctx, "help")
//	// err is non-nil only for infrastructure failures; res.Err carries
//	// command failures.
//	if err := sc.AssertOutputContainsLine("Available commands:"); err != nil {
//	    // *AssertionError
//	}
//
// # Fixture reset
//
// Scenarios carrying the fixtures tag (default "@fixtures") reset the
// database before they run. The first such scenario applies migrations and
// caches the resulting table list as a SchemaSnapshot; if migrations fail,
// the schema is torn down and migrations are applied once more. Later
// scenarios only truncate the tables in the snapshot. The migration ledger
// table is never truncated.
//
// After every reset and after every successful command, the identity cache
// is cleared, every registered fixture factory is reset and the policy cache
// is invalidated, so no scenario can observe objects cached by another.
//
// # Truncation
//
// Statements depend on the backend dialect:
//
//   - mysql: one batched statement bracketed by SET FOREIGN_KEY_CHECKS
//   - postgres and unknown dialects: TRUNCATE ... CASCADE per table
//   - sqlite: DELETE FROM per table with foreign keys switched off
package harness
