// Package merge provides the merge command.
package merge

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/cmd/cmdutil"
	"github.com/agentstation/syncmerge/internal/cmd/output"
	"github.com/agentstation/syncmerge/internal/snapshot"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/merge"
)

// AppContext defines what the merge command needs from the app.
type AppContext interface {
	Engine() (*syncmerge.Engine, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// Flags holds the merge command flags.
type Flags struct {
	Field              string
	Local              string
	Remote             string
	Algorithm          string
	PreserveFormatting bool
}

// NewCommand creates the merge command.
func NewCommand(app AppContext) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "merge",
		GroupID: "tools",
		Short:   "Merge two values of one field",
		Long: `Merge combines a local and a remote value of one field. The algorithm is
chosen from the field name and the value shapes unless --algorithm is given.

Values are parsed as YAML, so JSON works too. Anything that does not parse
is taken as plain text.

Algorithms: UNION, INTERSECTION, APPEND, THREE_WAY_MERGE, TIMESTAMP_PRIORITY,
LENGTH_PRIORITY, PRIORITY_BASED, CUSTOM.`,
		Example: `  syncmerge merge --field labels --local '["a","b"]' --remote '["b","c"]'
  syncmerge merge --field description --local 'one' --remote 'two' --algorithm APPEND`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmdutil.ResolveFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			res := engine.Merge(snapshot.ParseValue(flags.Local), snapshot.ParseValue(flags.Remote), flags.Field, opts)
			app.Logger().Debug().
				Str("field", flags.Field).
				Str("algorithm", string(res.Algorithm)).
				Bool("success", res.Success).
				Msg("merge complete")
			return output.Merge(cmd.OutOrStdout(), res, format)
		},
	}

	cmd.Flags().StringVar(&flags.Field, "field", "", "Field name (required)")
	cmd.Flags().StringVar(&flags.Local, "local", "", "Local value (YAML/JSON)")
	cmd.Flags().StringVar(&flags.Remote, "remote", "", "Remote value (YAML/JSON)")
	cmd.Flags().StringVar(&flags.Algorithm, "algorithm", "", "Force a merge algorithm")
	cmd.Flags().BoolVar(&flags.PreserveFormatting, "preserve-formatting", false,
		"Separate appended remote text with a banner")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}

func (f *Flags) options() (*merge.Options, error) {
	if f.Field == "" {
		return nil, errors.NewValidationError("field", f.Field, "field name is required")
	}
	opts := &merge.Options{PreserveFormatting: f.PreserveFormatting}
	if f.Algorithm != "" {
		a, err := merge.ParseAlgorithm(f.Algorithm)
		if err != nil {
			return nil, err
		}
		opts.Algorithm = a
	}
	return opts, nil
}
