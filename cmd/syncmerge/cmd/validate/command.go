// Package validate provides the validate command.
package validate

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge"
	"github.com/agentstation/syncmerge/internal/cmd/cmdutil"
	"github.com/agentstation/syncmerge/internal/cmd/output"
	"github.com/agentstation/syncmerge/internal/snapshot"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/validate"
)

// AppContext defines what the validate command needs from the app.
type AppContext interface {
	Engine() (*syncmerge.Engine, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// Flags holds the validate command flags.
type Flags struct {
	Field     string
	Value     string
	Record    string
	NoAutoFix bool
	Strict    bool
}

// NewCommand creates the validate command.
func NewCommand(app AppContext) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "validate",
		GroupID: "tools",
		Short:   "Validate one field value",
		Long: `Validate runs the built-in rules, the constraints from the rules file and
any business rules against a single value. The value is parsed as YAML, so
JSON works too.

Business rules see the other fields of the snapshot given with --record.`,
		Example: `  syncmerge validate --field summary --value ''
  syncmerge validate --field labels --value '["needs review"]' -o json
  syncmerge validate --field status --value Done --record local.yaml --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmdutil.ResolveFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			if flags.Field == "" {
				return errors.NewValidationError("field", flags.Field, "field name is required")
			}
			vc := &validate.Context{}
			if flags.Record != "" {
				snap, err := snapshot.Load(flags.Record)
				if err != nil {
					return err
				}
				vc.Fields = snap.Fields
			}
			if flags.NoAutoFix {
				off := false
				vc.AutoFix = &off
			}
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			outcome := engine.Validator().ValidateValue(flags.Field, snapshot.ParseValue(flags.Value), vc)
			app.Logger().Debug().
				Str("field", flags.Field).
				Bool("valid", outcome.IsValid).
				Int("errors", len(outcome.Errors)).
				Msg("validation complete")
			if err := output.Outcome(cmd.OutOrStdout(), outcome, format); err != nil {
				return err
			}
			if flags.Strict && !outcome.IsValid {
				return errors.NewValidationError(flags.Field, flags.Value, "value is invalid")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Field, "field", "", "Field name (required)")
	cmd.Flags().StringVar(&flags.Value, "value", "", "Value to validate (YAML/JSON)")
	cmd.Flags().StringVar(&flags.Record, "record", "", "Snapshot file providing the other fields")
	cmd.Flags().BoolVar(&flags.NoAutoFix, "no-autofix", false, "Report problems without correcting them")
	cmd.Flags().BoolVar(&flags.Strict, "strict", false, "Exit non-zero when the value is invalid")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}
