package app

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge/cmd/syncmerge/cmd/detect"
	"github.com/agentstation/syncmerge/cmd/syncmerge/cmd/merge"
	"github.com/agentstation/syncmerge/cmd/syncmerge/cmd/reconcile"
	"github.com/agentstation/syncmerge/cmd/syncmerge/cmd/resolve"
	"github.com/agentstation/syncmerge/cmd/syncmerge/cmd/validate"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(detect.NewCommand(a))
	rootCmd.AddCommand(resolve.NewCommand(a))
	rootCmd.AddCommand(reconcile.NewCommand(a))

	// Tool commands
	rootCmd.AddCommand(merge.NewCommand(a))
	rootCmd.AddCommand(validate.NewCommand(a))

	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("syncmerge %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
				cmd.Printf("  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}
