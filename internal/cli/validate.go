package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sdejongh/dirmirror/internal/platform"
	"github.com/sdejongh/dirmirror/pkg/config"
	"github.com/sdejongh/dirmirror/pkg/logging"
	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/spf13/cobra"
)

// loadConfig merges defaults, the config file, the environment and the
// command flags, in increasing precedence
func loadConfig(cmd *cobra.Command, global *GlobalFlags) (*config.Config, error) {
	v := config.NewViper()
	if err := bindMirrorFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	if err := config.ReadConfigFile(v, global.ConfigFile); err != nil {
		return nil, err
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}
	if global.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// resolvedPaths holds the absolute paths a mirror works with
type resolvedPaths struct {
	Source  string
	Replica string
	Log     string
}

// validatePaths checks the source, replica and log locations against each
// other. The replica does not have to exist.
func validatePaths(cfg *config.Config) (*resolvedPaths, error) {
	source, err := platform.AbsRoot(cfg.Sync.Source)
	if err != nil {
		return nil, &models.ConfigError{Field: "sync.source", Message: err.Error()}
	}
	replica, err := platform.AbsRoot(cfg.Sync.Replica)
	if err != nil {
		return nil, &models.ConfigError{Field: "sync.replica", Message: err.Error()}
	}
	logPath, err := platform.AbsRoot(cfg.Log.File)
	if err != nil {
		return nil, &models.ConfigError{Field: "log.file", Message: err.Error()}
	}

	info, err := os.Stat(source)
	if os.IsNotExist(err) {
		return nil, &models.ConfigError{Field: "sync.source", Message: fmt.Sprintf("path does not exist: %s", source)}
	} else if err != nil {
		return nil, &models.ConfigError{Field: "sync.source", Message: fmt.Sprintf("failed to access path: %v", err)}
	} else if !info.IsDir() {
		return nil, &models.ConfigError{Field: "sync.source", Message: fmt.Sprintf("path is not a directory: %s", source)}
	}

	info, err = os.Stat(replica)
	if err == nil && !info.IsDir() {
		return nil, &models.ConfigError{Field: "sync.replica", Message: fmt.Sprintf("path exists but is not a directory: %s", replica)}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, &models.ConfigError{Field: "sync.replica", Message: fmt.Sprintf("failed to access path: %v", err)}
	}

	// Nesting is checked on the real locations, so a root reached through a
	// symbolic link cannot hide inside the other one
	realSource, realReplica := platform.RealPath(source), platform.RealPath(replica)
	if realSource == realReplica {
		return nil, &models.ConfigError{Field: "sync.replica", Message: fmt.Sprintf("source and replica cannot be the same: %s", source)}
	}
	if platform.Contains(realSource, realReplica) {
		return nil, &models.ConfigError{Field: "sync.replica", Message: "replica cannot be inside the source directory"}
	}
	if platform.Contains(realReplica, realSource) {
		return nil, &models.ConfigError{Field: "sync.source", Message: "source cannot be inside the replica directory"}
	}

	// Anything under the replica that is not in the source gets deleted
	if platform.Contains(realReplica, platform.RealPath(logPath)) {
		return nil, &models.ConfigError{Field: "log.file", Message: "log file cannot be inside the replica directory"}
	}

	return &resolvedPaths{Source: source, Replica: replica, Log: logPath}, nil
}

// buildOptions creates the mirror options from a validated configuration
func buildOptions(cfg *config.Config, paths *resolvedPaths, dryRun bool) (*models.MirrorOptions, error) {
	bandwidth, err := cfg.BandwidthBytes()
	if err != nil {
		return nil, &models.ConfigError{Field: "performance.bandwidth", Message: err.Error()}
	}

	opts := &models.MirrorOptions{
		ID:              uuid.New().String(),
		SourcePath:      paths.Source,
		ReplicaPath:     paths.Replica,
		Interval:        cfg.IntervalDuration(),
		ExcludePatterns: cfg.Exclude,
		DryRun:          dryRun,
		PruneEmptyDirs:  cfg.Sync.PruneEmptyDirs,
		MaxWorkers:      cfg.Performance.MaxWorkers,
		BandwidthLimit:  bandwidth,
		BufferSize:      cfg.Performance.BufferSize,
		CreatedAt:       time.Now(),
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// acquireLock takes the single-instance lock next to the log file
func acquireLock(logPath string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lock := flock.New(logPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, &models.ConfigError{
			Field:   "log.file",
			Message: fmt.Sprintf("another dirmirror instance is running (lock %s is held)", lock.Path()),
		}
	}
	return lock, nil
}

// createLogger creates the event logger. Records are mirrored to console
// unless it is nil.
func createLogger(cfg *config.Config, logPath string, console io.Writer) (*logging.SlogLogger, error) {
	format := logging.FormatText
	if cfg.Log.Format == "json" {
		format = logging.FormatJSON
	}

	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       logPath,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Log.Level),
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    console,
		NoColor:    !colorTerminal(console),
	})
}

func colorTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
