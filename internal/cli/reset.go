package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stagehand/internal/harness"
	"github.com/roach88/stagehand/internal/steps"
)

// ResetResult is the JSON payload of the reset command.
type ResetResult struct {
	Dialect    string   `json:"dialect"`
	Ledger     string   `json:"ledger"`
	Truncated  []string `json:"truncated"`
	Statements []string `json:"statements"`
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Migrate and empty the database",
		Long: `Apply pending migrations and empty every table except the migration
ledger, exactly as a @fixtures scenario does.

Example:
  stagehand reset --config stagehand.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetDatabase(rootOpts, cmd)
		},
	}
}

func resetDatabase(opts *RootOptions, cmd *cobra.Command) error {
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
	if err := sc.OnScenarioStart(ctx, []string{world.Suite().FixturesTag()}); err != nil {
		return WrapExitError(ExitCommandError, "reset failed", err)
	}

	snap, _ := world.Suite().Snapshot()
	result := ResetResult{
		Dialect:    snap.Dialect,
		Ledger:     snap.Ledger,
		Truncated:  snap.Truncatable(),
		Statements: harness.TruncateStatements(snap.Dialect, snap.Tables, snap.Ledger),
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("Reset %d tables (%s): %s\n",
		len(result.Truncated), result.Dialect, strings.Join(result.Truncated, ", ")))
}
