package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/sdejongh/dirmirror/pkg/logging"
	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/sdejongh/dirmirror/pkg/ratelimit"
	"github.com/sdejongh/dirmirror/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Observer follows the progress of an Apply call
type Observer interface {
	// Begin is called once with the number of actions about to run
	Begin(total int, totalBytes int64)
	// Done is called from worker goroutines after each task
	Done(task *FileTask)
	// End is called once all workers have returned
	End()
}

// Applier carries out copy and remove actions against the replica
type Applier struct {
	source     storage.Backend
	replica    storage.Backend
	logger     logging.Logger
	limiter    *ratelimit.Limiter
	maxWorkers int
	dryRun     bool
	observer   Observer
}

// NewApplier creates an applier for the given pair of trees
func NewApplier(source, replica storage.Backend, logger logging.Logger, opts *models.MirrorOptions) *Applier {
	maxWorkers := opts.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Applier{
		source:     source,
		replica:    replica,
		logger:     logging.OrNull(logger),
		limiter:    ratelimit.NewLimiter(opts.BandwidthLimit),
		maxWorkers: maxWorkers,
		dryRun:     opts.DryRun,
	}
}

// Bandwidth returns the copy rate limit in bytes per second, 0 when
// unlimited
func (a *Applier) Bandwidth() int64 {
	return a.limiter.BytesPerSecond()
}

// SetObserver registers a progress observer
func (a *Applier) SetObserver(observer Observer) {
	a.observer = observer
}

func (a *Applier) withLogger(logger logging.Logger) *Applier {
	clone := *a
	clone.logger = logger
	return &clone
}

// ApplyCopy makes replicaRoot/path a copy of sourceRoot/path
func (a *Applier) ApplyCopy(ctx context.Context, path string) error {
	_, err := a.copy(ctx, path)
	return err
}

// ApplyRemove deletes replicaRoot/path unless the source file has come
// back since the snapshot was taken. removed is false when the removal was
// skipped or failed.
func (a *Applier) ApplyRemove(ctx context.Context, path string) (bool, error) {
	target := joinKey(a.replica.Root(), path)

	// Only a file or link at the same key counts as reappeared; a source
	// directory there means the replica file is stale
	info, err := a.source.Stat(ctx, path)
	if err != nil && !storage.IsNotExist(err) {
		rerr := &models.RemoveError{Path: path, Target: target, Err: fmt.Errorf("source check: %w", err)}
		a.logger.Error(ctx, "Failed to remove "+target, rerr, logging.Fields{
			"operation": string(models.ActionRemove),
			"source":    target,
		})
		return false, rerr
	}
	if err == nil && !info.IsDir {
		a.logger.Debug(ctx, "Keeping "+target+": source file reappeared", logging.Fields{
			"operation": string(models.ActionSkip),
			"source":    target,
		})
		return false, nil
	}

	if err := a.remove(ctx, path); err != nil {
		rerr := &models.RemoveError{Path: path, Target: target, Err: err}
		a.logger.Error(ctx, "Failed to remove "+target, rerr, logging.Fields{
			"operation": string(models.ActionRemove),
			"source":    target,
		})
		return false, rerr
	}

	a.logger.Info(ctx, "Removed "+target, a.eventFields(logging.Fields{
		"operation": string(models.ActionRemove),
		"source":    target,
	}))
	return true, nil
}

// Apply runs every action of diff on a bounded pool of workers and returns
// the finished report. Removals are dispatched before copies so a path
// that changed between file and directory settles in one cycle.
func (a *Applier) Apply(ctx context.Context, diff *DiffResult) *models.CycleReport {
	report := &models.CycleReport{
		SourcePath:  a.source.Root(),
		ReplicaPath: a.replica.Root(),
		DryRun:      a.dryRun,
		StartTime:   time.Now(),
	}
	a.apply(ctx, diff, report)
	report.Finish(ctx.Err() != nil)
	return report
}

func (a *Applier) apply(ctx context.Context, diff *DiffResult, report *models.CycleReport) {
	removes := make([]*FileTask, 0, diff.ToRemove.Cardinality())
	for _, key := range diff.RemovePaths() {
		removes = append(removes, NewFileTask(key, models.ActionRemove, 0))
	}

	var totalBytes int64
	copies := make([]*FileTask, 0, diff.ToCopy.Cardinality())
	for _, key := range diff.CopyPaths() {
		var size int64
		if entry, ok := diff.Source.Entry(key); ok && entry.IsRegular {
			size = entry.Size
		}
		totalBytes += size
		copies = append(copies, NewFileTask(key, models.ActionCopy, size))
	}

	if a.observer != nil {
		a.observer.Begin(len(removes)+len(copies), totalBytes)
		defer a.observer.End()
	}

	a.runTasks(ctx, removes, report)
	a.runTasks(ctx, copies, report)
}

// runTasks dispatches each task to exactly one worker. No new task starts
// once ctx is cancelled.
func (a *Applier) runTasks(ctx context.Context, tasks []*FileTask, report *models.CycleReport) {
	g := new(errgroup.Group)
	g.SetLimit(a.maxWorkers)

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			a.process(ctx, task, report)
			return nil
		})
	}

	_ = g.Wait()
}

func (a *Applier) process(ctx context.Context, task *FileTask, report *models.CycleReport) {
	task.MarkProcessing()

	switch task.Action {
	case models.ActionCopy:
		n, err := a.copy(ctx, task.RelativePath)
		if err != nil {
			task.MarkError(err)
			report.Stats.FilesErrored.Add(1)
			break
		}
		task.MarkCompleted(ResultCopied, n)
		report.Stats.FilesCopied.Add(1)
		report.Stats.BytesTransferred.Add(n)

	case models.ActionRemove:
		removed, err := a.ApplyRemove(ctx, task.RelativePath)
		switch {
		case err != nil:
			task.MarkError(err)
			report.Stats.FilesErrored.Add(1)
		case removed:
			task.MarkCompleted(ResultRemoved, 0)
			report.Stats.FilesRemoved.Add(1)
		default:
			task.MarkCompleted(ResultSkipped, 0)
			report.Stats.FilesSkipped.Add(1)
		}
	}

	report.AddOperation(task.Operation(a.source.Root(), a.replica.Root()))
	if a.observer != nil {
		a.observer.Done(task)
	}
}

// remove deletes the replica file. A dry run only checks that there is
// something to delete, so it reports the same failures as a real run.
func (a *Applier) remove(ctx context.Context, path string) error {
	if !a.dryRun {
		return a.replica.Remove(ctx, path)
	}

	exists, err := a.replica.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("failed to delete: %w", fs.ErrNotExist)
	}
	return nil
}

func (a *Applier) copy(ctx context.Context, path string) (int64, error) {
	src := joinKey(a.source.Root(), path)
	dst := joinKey(a.replica.Root(), path)
	fields := logging.Fields{
		"operation": string(models.ActionCopy),
		"source":    src,
		"dest":      dst,
	}

	n, err := a.transfer(ctx, path)
	if err != nil {
		cerr := &models.CopyError{Path: path, Source: src, Dest: dst, Err: err}
		if errors.Is(err, context.Canceled) {
			a.logger.Warn(ctx, "Copy of "+src+" abandoned", fields)
		} else {
			a.logger.Error(ctx, "Failed to copy "+src+" to "+dst, cerr, fields)
		}
		return n, cerr
	}

	fields["bytes"] = n
	a.logger.Info(ctx, "Copied "+src+" to "+dst, a.eventFields(fields))
	return n, nil
}

func (a *Applier) transfer(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := a.source.Stat(ctx, path)
	if err != nil {
		return 0, err
	}

	if a.dryRun {
		if info.IsRegular {
			return info.Size, nil
		}
		return 0, nil
	}

	// A directory left behind where a file now belongs is cleared if empty
	if current, err := a.replica.Stat(ctx, path); err == nil && current.IsDir {
		if _, err := a.replica.RemoveEmptyDir(ctx, path); err != nil {
			return 0, err
		}
	}

	switch {
	case info.IsSymlink:
		target, err := a.source.Readlink(ctx, path)
		if err != nil {
			return 0, err
		}
		return 0, a.replica.Symlink(ctx, target, path)

	case info.IsRegular:
		reader, err := a.source.Open(ctx, path)
		if err != nil {
			return 0, err
		}
		defer reader.Close()

		return a.replica.Write(ctx, path, ratelimit.NewReader(ctx, reader, a.limiter), info)

	default:
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
}

func (a *Applier) eventFields(fields logging.Fields) logging.Fields {
	if a.dryRun {
		fields["dry_run"] = true
	}
	return fields
}

func joinKey(root, key string) string {
	return filepath.Join(root, filepath.FromSlash(key))
}
