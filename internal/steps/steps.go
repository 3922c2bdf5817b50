package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/roach88/stagehand/internal/harness"
)

// InitializeTestSuite boots the runtime before the first scenario and shuts
// it down after the last one.
func (w *World) InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(func() {
		if err := w.suite.OnSuiteStart(context.Background()); err != nil {
			w.logger.Error("bootstrap failed", "error", err)
		}
	})
	ctx.AfterSuite(func() {
		if err := w.suite.OnSuiteEnd(context.Background()); err != nil {
			w.logger.Error("shutdown failed", "error", err)
		}
	})
}

// InitializeScenario registers the step definitions for one scenario.
func (w *World) InitializeScenario(ctx *godog.ScenarioContext) {
	s := &scenarioSteps{world: w, sc: w.suite.NewScenario()}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, s.sc.OnScenarioStart(ctx, pickleTags(sc))
	})

	// Command lines and expected output may contain double quotes.
	ctx.Step(`^(?:|I )run the command "(.*)"$`, s.runCommand)
	ctx.Step(`^(?:|I )should see the command output "(.*)"$`, s.shouldSeeOutputLine)
	ctx.Step(`^(?:|I )should not see the command output "(.*)"$`, s.shouldNotSeeOutputLine)
	ctx.Step(`^(?:|I )should see "(.*)" in the command output$`, s.shouldSeeInOutput)
	ctx.Step(`^the command should (succeed|fail)$`, s.commandShould)
	ctx.Step(`^[Pp]rint last command output$`, s.printLastOutput)

	ctx.Step(`^a role "([^"]*)" exists$`, s.roleExists)
	ctx.Step(`^there (?:is|are) (\d+) accounts? with role "([^"]*)"$`, s.accountsWithRole)
	ctx.Step(`^the role "([^"]*)" should( not)? exist$`, s.roleShouldExist)
	ctx.Step(`^the table "([^"]*)" should contain (\d+) rows?$`, s.tableShouldContain)
}

func pickleTags(sc *godog.Scenario) []string {
	tags := make([]string, 0, len(sc.Tags))
	for _, tag := range sc.Tags {
		tags = append(tags, tag.Name)
	}
	return tags
}

type scenarioSteps struct {
	world *World
	sc    *harness.Scenario
}

func (s *scenarioSteps) runCommand(ctx context.Context, line string) error {
	_, err := s.sc.RunCommand(ctx, line)
	return err
}

func (s *scenarioSteps) shouldSeeOutputLine(line string) error {
	return s.sc.AssertOutputContainsLine(line)
}

func (s *scenarioSteps) shouldNotSeeOutputLine(line string) error {
	last, ok := s.sc.LastResult()
	if !ok {
		return fmt.Errorf("no command has been run")
	}
	if s.sc.AssertOutputContainsLine(line) == nil {
		return &harness.AssertionError{
			Type:     harness.TypeOutputLine,
			Expected: fmt.Sprintf("no line equal to %q", line),
			Actual:   "line found",
			Output:   last.Output,
		}
	}
	return nil
}

func (s *scenarioSteps) shouldSeeInOutput(text string) error {
	return s.sc.AssertOutputContains(text)
}

func (s *scenarioSteps) commandShould(outcome string) error {
	last, ok := s.sc.LastResult()
	if !ok {
		return fmt.Errorf("no command has been run")
	}
	switch {
	case outcome == "succeed" && !last.OK():
		return fmt.Errorf("command %q failed: %w", last.Line, last.Err)
	case outcome == "fail" && last.OK():
		return fmt.Errorf("command %q succeeded, expected a failure", last.Line)
	}
	return nil
}

func (s *scenarioSteps) printLastOutput() error {
	return s.sc.PrintLastOutput(s.world.sink)
}

func (s *scenarioSteps) roleExists(ctx context.Context, identifier string) error {
	if _, err := s.world.runtime(ctx); err != nil {
		return err
	}
	if _, err := s.world.Fixtures().Roles.Ensure(ctx, identifier); err != nil {
		return err
	}
	return s.sc.PersistAll(ctx)
}

func (s *scenarioSteps) accountsWithRole(ctx context.Context, n int, role string) error {
	if _, err := s.world.runtime(ctx); err != nil {
		return err
	}
	set := s.world.Fixtures()
	if _, err := set.Roles.Ensure(ctx, role); err != nil {
		return err
	}
	if _, err := set.Accounts.Create(ctx, n, role); err != nil {
		return err
	}
	return s.sc.PersistAll(ctx)
}

func (s *scenarioSteps) roleShouldExist(ctx context.Context, identifier, not string) error {
	rt, err := s.world.runtime(ctx)
	if err != nil {
		return err
	}
	exists, err := rt.Policy().HasRole(ctx, identifier)
	if err != nil {
		return err
	}

	want := not == ""
	if exists != want {
		return &harness.AssertionError{
			Type:     harness.TypeRoleExists,
			Expected: fmt.Sprintf("role %q exists: %t", identifier, want),
			Actual:   fmt.Sprintf("exists: %t", exists),
		}
	}
	return nil
}

func (s *scenarioSteps) tableShouldContain(ctx context.Context, table string, n int) error {
	rt, err := s.world.runtime(ctx)
	if err != nil {
		return err
	}
	return harness.AssertTableRows(ctx, rt.Store(), table, int64(n))
}
