package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sdejongh/dirmirror/pkg/models"
)

// JSONFormatter formats the cycle summary for automation and scripting
type JSONFormatter struct{}

// JSONReportData represents the final report data
type JSONReportData struct {
	CycleID    string          `json:"cycle_id"`
	Source     string          `json:"source"`
	Replica    string          `json:"replica"`
	DryRun     bool            `json:"dry_run,omitempty"`
	Status     string          `json:"status"`
	StartTime  time.Time       `json:"start_time"`
	Duration   string          `json:"duration"`
	DurationMs int64           `json:"duration_ms"`
	Stats      JSONStatsData   `json:"stats"`
	Errors     []JSONErrorData `json:"errors,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	Scanned    JSONScannedData    `json:"scanned"`
	Operations JSONOperationsData `json:"operations"`
	Transfer   JSONTransferData   `json:"transfer"`
}

// JSONScannedData represents scanned files statistics
type JSONScannedData struct {
	SourceFiles  int64 `json:"source_files"`
	ReplicaFiles int64 `json:"replica_files"`
}

// JSONOperationsData represents operations statistics
type JSONOperationsData struct {
	FilesCopied    int64 `json:"files_copied"`
	FilesRemoved   int64 `json:"files_removed"`
	FilesUnchanged int64 `json:"files_unchanged"`
	FilesSkipped   int64 `json:"files_skipped"`
	FilesErrored   int64 `json:"files_errored"`
	DirsPruned     int64 `json:"dirs_pruned"`
}

// JSONTransferData represents transfer statistics
type JSONTransferData struct {
	BytesTransferred int64  `json:"bytes_transferred"`
	AverageSpeed     int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr  string `json:"average_speed,omitempty"`
}

// JSONErrorData represents an error entry
type JSONErrorData struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Report writes the report as one indented JSON document
func (f *JSONFormatter) Report(w io.Writer, report *models.CycleReport) error {
	stats := &report.Stats
	data := JSONReportData{
		CycleID:    report.CycleID,
		Source:     report.SourcePath,
		Replica:    report.ReplicaPath,
		DryRun:     report.DryRun,
		Status:     string(report.Status),
		StartTime:  report.StartTime,
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			Scanned: JSONScannedData{
				SourceFiles:  stats.SourceFilesScanned.Load(),
				ReplicaFiles: stats.ReplicaFilesScanned.Load(),
			},
			Operations: JSONOperationsData{
				FilesCopied:    stats.FilesCopied.Load(),
				FilesRemoved:   stats.FilesRemoved.Load(),
				FilesUnchanged: stats.FilesUnchanged.Load(),
				FilesSkipped:   stats.FilesSkipped.Load(),
				FilesErrored:   stats.FilesErrored.Load(),
				DirsPruned:     stats.DirsPruned.Load(),
			},
			Transfer: JSONTransferData{
				BytesTransferred: stats.BytesTransferred.Load(),
			},
		},
	}

	if speed := averageSpeed(report); speed > 0 {
		data.Stats.Transfer.AverageSpeed = speed
		data.Stats.Transfer.AverageSpeedStr = humanize.IBytes(uint64(speed)) + "/s"
	}

	for _, e := range report.Errors {
		data.Errors = append(data.Errors, JSONErrorData{
			Path:      e.FilePath,
			Operation: string(e.Operation),
			Error:     e.Error,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
