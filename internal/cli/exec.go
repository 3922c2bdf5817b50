package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stagehand/internal/steps"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Reset bool
}

// ExecResult is the JSON payload of the exec command.
type ExecResult struct {
	Line   string `json:"line"`
	Output string `json:"output"`
	OK     bool   `json:"ok"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <command line>",
		Short: "Run one console command with output captured",
		Long: `Run one console command through the scenario runner and print what
it wrote. Pending writes are flushed when the command succeeds.

Arguments are joined with spaces, so quote the whole line to keep
quoting inside it.

Examples:
  stagehand exec help
  stagehand exec "role:create ROLE_ADMIN --description 'Administrators'"
  stagehand exec --reset role:list`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execLine(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "reset the database before running the command")

	return cmd
}

func execLine(opts *ExecOptions, line string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	world := steps.NewWorld(cfg, cmd.ErrOrStderr())
	defer world.Suite().OnSuiteEnd(ctx)

	sc := world.Suite().NewScenario()
	if opts.Reset {
		err = sc.OnScenarioStart(ctx, []string{world.Suite().FixturesTag()})
	} else {
		err = world.Migrate(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare runtime", err)
	}

	res, err := sc.RunCommand(ctx, line)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to persist command", err)
	}

	f := opts.formatter(cmd)
	if res.OK() {
		return f.Success(outputPayload(opts.Format, ExecResult{Line: line, Output: res.Output, OK: true}))
	}

	if opts.Format == "json" {
		if err := f.Error("E_COMMAND_FAILED", res.Err.Error(), ExecResult{Line: line, Output: res.Output}); err != nil {
			return err
		}
	} else if _, err := cmd.OutOrStdout().Write([]byte(res.Output)); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, "command failed", res.Err)
}

// outputPayload returns the captured output for text mode and the full
// result for JSON.
func outputPayload(format string, r ExecResult) any {
	if format == "json" {
		return r
	}
	return r.Output
}
