// Package reconcile provides the reconcile command.
package reconcile

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/cmd/cmdutil"
	"github.com/agentstation/syncmerge/internal/cmd/output"
	"github.com/agentstation/syncmerge/pkg/errors"
)

// AppContext defines what the reconcile command needs from the app.
type AppContext interface {
	Engine() (*syncmerge.Engine, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the reconcile command.
func NewCommand(app AppContext) *cobra.Command {
	var failOnReview bool

	cmd := &cobra.Command{
		Use:     "reconcile LOCAL [REMOTE]",
		GroupID: "core",
		Short:   "Detect, resolve and validate every conflict",
		Long: `Reconcile runs the full pipeline on two snapshots: conflicts are detected,
a resolution is chosen for each field, and every proposed value is validated
before it is written into the merged record. Fields that need manual review
or were blocked by validation keep their local value.

When REMOTE is omitted the remote record is treated as deleted.`,
		Example: `  syncmerge reconcile local.yaml remote.yaml
  syncmerge reconcile local.yaml remote.yaml -o json --fail-on-review`,
		Args: cmdutil.SnapshotArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmdutil.ResolveFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			local, remote, err := cmdutil.LoadSnapshots(args)
			if err != nil {
				return err
			}
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			report := engine.Reconcile(cmd.Context(), local, remote)
			if err := output.Report(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}

			pending := report.Pending()
			app.Logger().Debug().
				Str("entity_key", report.EntityKey).
				Int("fields", len(report.Fields)).
				Int("pending", len(pending)).
				Msg("reconcile complete")
			if failOnReview && report.NeedsReview() {
				return errors.NewValidationError("report", len(pending), "record needs manual review")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnReview, "fail-on-review", false,
		"Exit non-zero when any field needs manual review")

	return cmd
}
