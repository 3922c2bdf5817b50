package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"github.com/spf13/cobra"

	"github.com/roach88/stagehand/internal/steps"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Tags    string // godog tag expression
	Strict  bool   // fail on pending or undefined steps
	NoColor bool
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [features...]",
		Short: "Run feature files against the runtime",
		Long: `Run Gherkin feature files against the sample runtime.

The runtime is booted once for the whole run. Paths default to ./features.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing paths, bad config, etc.)

Examples:
  stagehand test
  stagehand test features/roles.feature
  stagehand test --tags "@fixtures && ~@slow"
  stagehand test --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeatures(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Tags, "tags", "t", "", "run only scenarios matching the tag expression")
	cmd.Flags().BoolVar(&opts.Strict, "strict", true, "fail on undefined or pending steps")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	return cmd
}

func runFeatures(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	if len(paths) == 0 {
		paths = []string{"features"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("feature path not found: %s", p))
		}
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	world := steps.NewWorld(cfg, cmd.ErrOrStderr())

	suite := godog.TestSuite{
		Name:                 "stagehand",
		TestSuiteInitializer: world.InitializeTestSuite,
		ScenarioInitializer:  world.InitializeScenario,
		Options: &godog.Options{
			Format:      godogFormat(opts.Format),
			Paths:       paths,
			Tags:        opts.Tags,
			Strict:      opts.Strict,
			Concurrency: 1,
			NoColors:    opts.NoColor || opts.Format == "json",
			Output:      godogOutput(out, opts.NoColor || opts.Format == "json"),
		},
	}

	status := suite.Run()
	if fatal := world.Suite().Err(); fatal != nil {
		return WrapExitError(ExitCommandError, "runtime aborted", fatal)
	}

	switch status {
	case 0:
		return nil
	case 1:
		return NewExitError(ExitFailure, "one or more scenarios failed")
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("godog exited with status %d", status))
	}
}

// godogFormat maps --format to a godog formatter: pretty for text, the
// cucumber JSON report for json.
func godogFormat(format string) string {
	if format == "json" {
		return "cucumber"
	}
	return "pretty"
}

func godogOutput(w io.Writer, plain bool) io.Writer {
	if plain {
		return w
	}
	return colors.Colored(w)
}
