package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the dirmirror command tree
func NewRootCommand() *cobra.Command {
	global := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "dirmirror",
		Short: "One-way periodic directory mirror",
		Long: `dirmirror keeps a replica directory identical to a source directory.
Files missing from the replica are copied, files gone from the source are
removed from the replica, and every change is logged.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd, global)

	rootCmd.AddCommand(NewRunCommand(global))
	rootCmd.AddCommand(NewOnceCommand(global))
	rootCmd.AddCommand(NewConfigCommand(global))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
