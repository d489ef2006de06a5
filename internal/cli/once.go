package cli

import (
	"fmt"
	"io"

	"github.com/sdejongh/dirmirror/pkg/output"
	"github.com/spf13/cobra"
)

// OnceFlags holds once command flags
type OnceFlags struct {
	DryRun   bool
	Progress bool
	Output   string
}

// ExitError carries the process exit code of a finished command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewOnceCommand creates the once command
func NewOnceCommand(global *GlobalFlags) *cobra.Command {
	flags := &OnceFlags{}

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single mirror cycle",
		Long: `Run exactly one mirror cycle and print a summary.

The exit code reflects the cycle: 0 success, 1 some files failed,
2 the cycle failed, 3 interrupted.`,
		Example: `  dirmirror once -s ./data -r /backup/data -l ./dirmirror.log --dry-run`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, global, flags)
		},
	}

	addMirrorFlags(cmd)
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "report what would change without touching the replica")
	cmd.Flags().BoolVar(&flags.Progress, "progress", false, "show a progress bar (terminal only)")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "human", "summary format: human, json")

	return cmd
}

func runOnce(cmd *cobra.Command, global *GlobalFlags, flags *OnceFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	formatter, err := output.NewFormatter(flags.Output)
	if err != nil {
		return err
	}

	var progress *output.Progress
	if flags.Progress && !global.Quiet {
		progress = output.NewProgress(out)
	}

	// The bar and the console records would overwrite each other
	var console io.Writer
	if !global.Quiet && (progress == nil || !progress.Enabled()) {
		console = out
	}

	s, err := openSession(cmd, global, sessionOptions{dryRun: flags.DryRun, console: console})
	if err != nil {
		return err
	}
	defer s.Close()

	s.logStart(ctx, "once")
	if progress != nil {
		s.cycle.Applier().SetObserver(progress)
	}

	report, runErr := s.cycle.Run(ctx)

	if !global.Quiet {
		if err := formatter.Report(out, report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	code := report.Status.ExitCode()
	if code == 0 {
		return nil
	}
	if runErr == nil && len(report.Errors) > 0 {
		// The details are already in the log
		runErr = fmt.Errorf("%d file operation(s) failed, see %s", len(report.Errors), s.cfg.Log.File)
	}
	return &ExitError{Code: code, Err: runErr}
}
