package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sdejongh/dirmirror/pkg/models"
)

// HumanFormatter formats the cycle summary for a terminal
type HumanFormatter struct{}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Report writes a plain text summary
func (f *HumanFormatter) Report(w io.Writer, report *models.CycleReport) error {
	title := "Mirror"
	if report.DryRun {
		title = "Dry run"
	}

	stats := &report.Stats
	fmt.Fprintf(w, "\n%s completed in %s\n\n", title, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:\n")
	fmt.Fprintf(w, "    Source:         %d files\n", stats.SourceFilesScanned.Load())
	fmt.Fprintf(w, "    Replica:        %d files\n", stats.ReplicaFilesScanned.Load())
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Operations:\n")
	fmt.Fprintf(w, "    Files copied:   %d\n", stats.FilesCopied.Load())
	fmt.Fprintf(w, "    Files removed:  %d\n", stats.FilesRemoved.Load())
	fmt.Fprintf(w, "    Files kept:     %d\n", stats.FilesUnchanged.Load())
	if n := stats.FilesSkipped.Load(); n > 0 {
		fmt.Fprintf(w, "    Files skipped:  %d\n", n)
	}
	fmt.Fprintf(w, "    Files errored:  %d\n", stats.FilesErrored.Load())
	if n := stats.DirsPruned.Load(); n > 0 {
		fmt.Fprintf(w, "    Dirs pruned:    %d\n", n)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Data:           %s\n", humanize.IBytes(uint64(stats.BytesTransferred.Load())))
	if speed := averageSpeed(report); speed > 0 {
		fmt.Fprintf(w, "    Average speed:  %s/s\n", humanize.IBytes(uint64(speed)))
	}

	fmt.Fprintf(w, "\nStatus: %s\n", report.Status)

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", e.Operation, e.FilePath, e.Error)
		}
	}

	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func averageSpeed(report *models.CycleReport) int64 {
	if report.Duration <= 0 {
		return 0
	}
	return int64(float64(report.Stats.BytesTransferred.Load()) / report.Duration.Seconds())
}
