package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/sdejongh/dirmirror/pkg/config"
	"github.com/sdejongh/dirmirror/pkg/logging"
	"github.com/sdejongh/dirmirror/pkg/mirror"
	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/sdejongh/dirmirror/pkg/storage"
	"github.com/spf13/cobra"
)

// session holds everything a command needs to run cycles
type session struct {
	cfg     *config.Config
	opts    *models.MirrorOptions
	logger  *logging.SlogLogger
	lock    *flock.Flock
	source  *storage.Local
	replica *storage.Local
	cycle   *mirror.Cycle
}

type sessionOptions struct {
	// scheduled requires an interval
	scheduled bool
	dryRun    bool
	// console receives a copy of the log records, nil for none
	console io.Writer
}

// openSession loads and validates the configuration, takes the instance
// lock and opens the log and both trees. Every failure here is fatal.
func openSession(cmd *cobra.Command, global *GlobalFlags, so sessionOptions) (*session, error) {
	cfg, err := loadConfig(cmd, global)
	if err != nil {
		return nil, err
	}

	validate := cfg.ValidateCycle
	if so.scheduled {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	paths, err := validatePaths(cfg)
	if err != nil {
		return nil, err
	}

	opts, err := buildOptions(cfg, paths, so.dryRun)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, opts: opts}

	s.lock, err = acquireLock(paths.Log)
	if err != nil {
		return nil, err
	}

	s.logger, err = createLogger(cfg, paths.Log, so.console)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s.source, err = storage.NewLocal(paths.Source)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create source backend: %w", err)
	}

	s.replica, err = storage.NewLocal(paths.Replica)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create replica backend: %w", err)
	}
	s.replica.SetBufferSize(opts.BufferSize)

	if !opts.DryRun {
		if err := s.replica.MkdirAll(cmd.Context(), ""); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create replica directory: %w", err)
		}
	}

	s.cycle, err = mirror.NewCycle(s.source, s.replica, s.logger, opts)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// logStart writes the effective settings to the event log
func (s *session) logStart(ctx context.Context, command string) {
	fields := logging.Fields{
		"command":  command,
		"source":   s.opts.SourcePath,
		"replica":  s.opts.ReplicaPath,
		"workers":  s.opts.MaxWorkers,
		"run_id":   s.opts.ID,
		"dry_run":  s.opts.DryRun,
		"excludes": len(s.opts.ExcludePatterns),
	}
	if s.opts.Interval > 0 {
		fields["interval"] = s.opts.Interval.String()
	}
	if bw := s.cycle.Applier().Bandwidth(); bw > 0 {
		fields["bandwidth"] = humanize.Bytes(uint64(bw)) + "/s"
	}
	s.logger.Debug(ctx, "configuration loaded", fields)
}

// Close releases the trees, the log and the lock
func (s *session) Close() {
	if s.source != nil {
		s.source.Close()
	}
	if s.replica != nil {
		s.replica.Close()
	}
	if s.logger != nil {
		s.logger.Close()
	}
	if s.lock != nil {
		s.lock.Unlock()
	}
}
