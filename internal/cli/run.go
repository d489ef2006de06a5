package cli

import (
	"io"

	"github.com/sdejongh/dirmirror/pkg/mirror"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command
func NewRunCommand(global *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror a source directory into a replica periodically",
		Long: `Keep a replica directory identical to a source directory.

A cycle runs immediately, then again each time the interval has elapsed
after the previous cycle finished. Every copy and removal is written to the
log file and to stdout. Stop with Ctrl+C (SIGINT) or SIGTERM.`,
		Example: `  dirmirror run --source ./data --replica /backup/data --interval 60 --log ./dirmirror.log`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, global)
		},
	}

	addMirrorFlags(cmd)

	return cmd
}

func runDaemon(cmd *cobra.Command, global *GlobalFlags) error {
	ctx := cmd.Context()

	var console io.Writer
	if !global.Quiet {
		console = cmd.OutOrStdout()
	}

	s, err := openSession(cmd, global, sessionOptions{scheduled: true, console: console})
	if err != nil {
		return err
	}
	defer s.Close()

	s.logStart(ctx, "run")

	scheduler := mirror.NewScheduler(s.cycle, s.opts.Interval, s.logger)
	return scheduler.Run(ctx)
}
