// Package resolve provides the resolve command.
package resolve

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/cmd/cmdutil"
	"github.com/agentstation/syncmerge/internal/cmd/output"
)

// AppContext defines what the resolve command needs from the app.
type AppContext interface {
	Engine() (*syncmerge.Engine, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the resolve command.
func NewCommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolve LOCAL REMOTE",
		GroupID: "core",
		Short:   "Propose a resolution for each conflicting field",
		Long: `Resolve detects the fields edited on both sides and proposes a resolution
strategy for each one, with its confidence and reasoning. Proposals are not
validated; use reconcile for the full pipeline.`,
		Example: `  syncmerge resolve local.yaml remote.yaml
  syncmerge resolve local.yaml remote.yaml --rules rules.yaml -o yaml`,
		Args: cobra.ExactArgs(2),
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

			recs := engine.Detector().DetectAllConflicts(local, remote)
			resolutions := engine.Selector().AnalyzeBatch(cmd.Context(), recs, nil)
			app.Logger().Debug().Int("conflicts", len(recs)).Msg("analysis complete")
			return output.Resolutions(cmd.OutOrStdout(), recs, resolutions, format)
		},
	}
	return cmd
}
