// Package detect provides the detect command.
package detect

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/cmd/cmdutil"
	"github.com/agentstation/syncmerge/internal/cmd/output"
	"github.com/agentstation/syncmerge/pkg/conflict"
	"github.com/agentstation/syncmerge/pkg/detect"
)

// AppContext defines what the detect command needs from the app.
type AppContext interface {
	Engine() (*syncmerge.Engine, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the detect command.
func NewCommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "detect LOCAL [REMOTE]",
		GroupID: "core",
		Short:   "List conflicts between two snapshots",
		Long: `Detect compares two snapshots of the same record and lists every conflict:
fields edited on both sides, fields whose values changed shape, and fields
present on one side only.

When REMOTE is omitted the remote record is treated as deleted.`,
		Example: `  syncmerge detect local.yaml remote.yaml
  syncmerge detect local.yaml remote.json -o json
  syncmerge detect local.yaml                      # remote deleted`,
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

			recs := Conflicts(engine.Detector(), local, remote)
			app.Logger().Debug().Int("conflicts", len(recs)).Msg("detection complete")
			return output.Records(cmd.OutOrStdout(), recs, format)
		},
	}
	return cmd
}

// Conflicts runs every detection pass over two snapshots.
func Conflicts(d *detect.Detector, local, remote *detect.Snapshot) []*conflict.Record {
	if remote == nil {
		if rec := d.DetectDeletedItemConflict(local, nil); rec != nil {
			return []*conflict.Record{rec}
		}
		return nil
	}
	recs := d.DetectAllConflicts(local, remote)
	recs = append(recs, d.DetectTypeConflicts(local, remote)...)
	return append(recs, d.DetectSchemaConflicts(local, remote)...)
}
