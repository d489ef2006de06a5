package mirror

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sdejongh/dirmirror/pkg/logging"
	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/sdejongh/dirmirror/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Cycle runs one list, diff, apply pass over a source and replica pair
type Cycle struct {
	source  storage.Backend
	replica storage.Backend
	logger  logging.Logger
	opts    *models.MirrorOptions
	exclude *Excluder
	applier *Applier
}

// NewCycle creates a cycle runner. It fails only on invalid exclude
// patterns.
func NewCycle(source, replica storage.Backend, logger logging.Logger, opts *models.MirrorOptions) (*Cycle, error) {
	exclude, err := NewExcluder(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	logger = logging.OrNull(logger)
	return &Cycle{
		source:  source,
		replica: replica,
		logger:  logger,
		opts:    opts,
		exclude: exclude,
		applier: NewApplier(source, replica, logger, opts),
	}, nil
}

// Applier returns the applier used by the cycle, e.g. to attach an observer
func (c *Cycle) Applier() *Applier {
	return c.applier
}

// Run executes a single cycle. The returned error is non-nil only when the
// cycle could not compute its actions (source listing failed or ctx was
// cancelled during listing); per-file failures are in the report.
func (c *Cycle) Run(ctx context.Context) (*models.CycleReport, error) {
	report := &models.CycleReport{
		CycleID:     uuid.New().String(),
		SourcePath:  c.source.Root(),
		ReplicaPath: c.replica.Root(),
		DryRun:      c.opts.DryRun,
		StartTime:   time.Now(),
	}
	logger := c.logger.WithFields(logging.Fields{"cycle_id": report.CycleID})

	logger.Debug(ctx, "cycle started", logging.Fields{
		"source":  report.SourcePath,
		"replica": report.ReplicaPath,
	})

	var sourceSnap, replicaSnap *Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceSnap, err = ListFiles(gctx, c.source, ListOptions{Exclude: c.exclude})
		return err
	})
	g.Go(func() error {
		var err error
		replicaSnap, err = ListFiles(gctx, c.replica, ListOptions{AllowMissing: true, Exclude: c.exclude})
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			report.Status = models.StatusFailed
		}
		report.Finish(ctx.Err() != nil)
		logger.Error(ctx, "cycle failed", err, logging.Fields{
			"status":   string(report.Status),
			"duration": report.Duration.String(),
		})
		return report, err
	}

	logger.Debug(ctx, "trees listed", logging.Fields{
		"source_files":  sourceSnap.Len(),
		"source_size":   humanize.Bytes(uint64(sourceSnap.Size())),
		"replica_files": replicaSnap.Len(),
		"replica_size":  humanize.Bytes(uint64(replicaSnap.Size())),
	})

	diff := Diff(sourceSnap, replicaSnap)
	report.Stats.SourceFilesScanned.Store(int64(sourceSnap.Len()))
	report.Stats.ReplicaFilesScanned.Store(int64(replicaSnap.Len()))
	report.Stats.FilesUnchanged.Store(int64(diff.Unchanged.Cardinality()))

	c.applier.withLogger(logger).apply(ctx, diff, report)

	if c.opts.PruneEmptyDirs && !c.opts.DryRun && ctx.Err() == nil {
		c.pruneEmptyDirs(ctx, logger, report)
	}

	report.Finish(ctx.Err() != nil)
	c.logSummary(ctx, logger, report)
	return report, nil
}

// pruneEmptyDirs removes empty replica directories deepest first. The
// replica root is never removed.
func (c *Cycle) pruneEmptyDirs(ctx context.Context, logger logging.Logger, report *models.CycleReport) {
	dirs, err := listDirs(ctx, c.replica, c.exclude)
	if err != nil {
		logger.Warn(ctx, "skipping empty directory pruning", logging.Fields{"error": err.Error()})
		return
	}

	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if di != dj {
			return di > dj
		}
		return dirs[i] > dirs[j]
	})

	for _, dir := range dirs {
		if ctx.Err() != nil {
			return
		}
		removed, err := c.replica.RemoveEmptyDir(ctx, dir)
		if err != nil {
			logger.Warn(ctx, "failed to prune directory", logging.Fields{
				"path":  joinKey(c.replica.Root(), dir),
				"error": err.Error(),
			})
			continue
		}
		if removed {
			report.Stats.DirsPruned.Add(1)
			logger.Debug(ctx, "pruned empty directory", logging.Fields{"path": joinKey(c.replica.Root(), dir)})
		}
	}
}

func (c *Cycle) logSummary(ctx context.Context, logger logging.Logger, report *models.CycleReport) {
	fields := logging.Fields{
		"status":    string(report.Status),
		"copied":    report.Stats.FilesCopied.Load(),
		"removed":   report.Stats.FilesRemoved.Load(),
		"unchanged": report.Stats.FilesUnchanged.Load(),
		"errors":    report.Stats.FilesErrored.Load(),
		"bytes":     humanize.Bytes(uint64(report.Stats.BytesTransferred.Load())),
		"duration":  report.Duration.Round(time.Millisecond).String(),
	}
	if report.Stats.DirsPruned.Load() > 0 {
		fields["pruned_dirs"] = report.Stats.DirsPruned.Load()
	}
	if report.Stats.FilesSkipped.Load() > 0 {
		fields["skipped"] = report.Stats.FilesSkipped.Load()
	}

	// Quiet cycles stay out of the event log at the default level
	if report.ActionsTaken() == 0 && len(report.Errors) == 0 && report.Status == models.StatusSuccess {
		logger.Debug(ctx, "cycle complete", fields)
		return
	}
	logger.Info(ctx, "cycle complete", fields)
}
