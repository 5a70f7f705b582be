package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/im7mortal/kmutex"

	"github.com/semmidev/wpbackup/internal/domain"
)

// runLocks serializes runs writing to the same output path within the
// process.
var runLocks = kmutex.New()

// OutputStorage is the filesystem view the orchestrator needs of the
// output location.
type OutputStorage interface {
	Exists(path string) (bool, error)
	Remove(path string) error
	Size(path string) (int64, error)
}

// Backup sequences one backup run: open archive, add the file tree, add the
// database dump, finalize. Any failure removes the partial artifact.
type Backup struct {
	request  domain.BackupRequest
	source   domain.TableSource
	open     domain.ArchiveOpener
	output   OutputStorage
	files    *FileTree
	dumper   *Dumper
	logger   Logger
}

func NewBackup(
	request domain.BackupRequest,
	source domain.TableSource,
	open domain.ArchiveOpener,
	output OutputStorage,
	logger Logger,
) *Backup {
	if !request.Policy.Valid() {
		request.Policy = domain.PolicyStrict
	}
	return &Backup{
		request: request,
		source:  source,
		open:    open,
		output:  output,
		files:   NewFileTree(logger, request.Policy),
		dumper:  NewDumper(logger, request.Policy, ""),
		logger:  logger,
	}
}

// Run performs a backup and blocks until it finishes.
func (uc *Backup) Run(ctx context.Context) domain.BackupResult {
	return uc.Start(ctx, nil).Wait()
}

// Start launches a backup in the background and returns its handle.
// observer, if set, receives the progress snapshots of this run only.
func (uc *Backup) Start(ctx context.Context, observer domain.ProgressFunc) *Job {
	job := newJob(ctx, observer)
	go func() {
		job.finish(uc.execute(job.ctx, job.report))
	}()
	return job
}

type run struct {
	started  time.Time
	progress domain.Progress
	report   domain.ProgressFunc
	stats    domain.BackupStats
}

func (r *run) stage(s domain.Stage) {
	r.progress.Stage = s
	r.report(r.progress)
}

func (uc *Backup) execute(ctx context.Context, report domain.ProgressFunc) domain.BackupResult {
	r := &run{started: time.Now(), report: report}

	output, err := filepath.Abs(uc.request.OutputPath)
	if err != nil {
		return uc.fail(r, "Invalid output path.", domain.NewBackupError(domain.KindUnknown, "resolve output path", err))
	}
	root := normalizeRoot(uc.request.RootDir)

	runLocks.Lock(output)
	defer runLocks.Unlock(output)

	r.stage(domain.StageIdle)
	uc.logger.Infof("Starting backup of %s to %s", root, output)

	uc.removeStale(output)

	archive, err := uc.open(output)
	if err != nil {
		be := domain.NewBackupError(domain.KindUnknown, "open archive", err)
		if be.Kind == domain.KindUnknown {
			be.Kind = domain.KindPermissionDenied
		}
		return uc.fail(r, "Failed to create backup zip file. Check file permissions of the output directory.", be)
	}
	r.stage(domain.StageArchiveOpened)

	exclusions := uc.exclusions(root, output)
	tree, err := uc.files.Archive(ctx, root, archive, exclusions, func(rel string, s TreeStats) {
		r.progress.Dirs, r.progress.Files, r.progress.Skipped = s.Dirs, s.Files, s.Skipped
		r.progress.Current = rel
		r.report(r.progress)
	})
	r.stats.Dirs, r.stats.Files, r.stats.Skipped = tree.Dirs, tree.Files, tree.Skipped
	if err != nil {
		uc.abort(archive, output)
		return uc.fail(r, "File backup process failed.", err)
	}
	uc.logger.Infof("Archived %d file(s) and %d dir(s), %d excluded", tree.Files, tree.Dirs, tree.Excluded)
	r.stage(domain.StageFilesArchived)

	dump, err := uc.dumper.Dump(ctx, uc.source, archive, func(table string, s DumpStats) {
		r.progress.Tables, r.progress.Rows = s.Tables, s.Rows
		r.progress.Current = table
		r.report(r.progress)
	})
	r.stats.Tables, r.stats.Rows = dump.Tables, dump.Rows
	r.stats.Skipped += dump.Skipped
	if err != nil {
		uc.abort(archive, output)
		return uc.fail(r, "Database backup process failed.", err)
	}
	uc.logger.Infof("Dumped %d table(s), %d row(s), %.2f MB of SQL",
		dump.Tables, dump.Rows, float64(dump.Bytes)/(1024*1024))
	r.stage(domain.StageDatabaseDumped)

	if err := archive.Close(); err != nil {
		uc.removeOutput(output)
		return uc.fail(r, "Failed to finalize the backup zip file.",
			domain.NewBackupError(domain.KindPartialWriteFailure, "finalize archive", err))
	}

	if size, err := uc.output.Size(output); err == nil {
		r.stats.Size = size
	}
	r.progress.Current = ""
	r.stage(domain.StageFinalized)

	result := domain.BackupResult{
		OK:       true,
		Path:     output,
		Message:  "Backup completed successfully!",
		Stats:    r.stats,
		Started:  r.started,
		Finished: time.Now(),
	}
	uc.logger.Infof("Backup completed in %s: %s (%.2f MB)",
		result.Duration().Round(time.Millisecond), output, float64(r.stats.Size)/(1024*1024))
	return result
}

// exclusions merges defaults, caller entries, and the output path itself
// when it lies under the root.
func (uc *Backup) exclusions(root, output string) domain.ExclusionSet {
	set := domain.NewExclusionSet(filepath.Base(output), uc.request.Exclusions...)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return set
	}
	rel, err := filepath.Rel(absRoot, output)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return set
	}
	return set.With(filepath.ToSlash(rel))
}

func (uc *Backup) removeStale(output string) {
	exists, err := uc.output.Exists(output)
	if err != nil {
		uc.logger.Warnf("Could not check for existing backup file %s: %v", output, err)
		return
	}
	if !exists {
		return
	}
	if err := uc.output.Remove(output); err != nil {
		uc.logger.Warnf("Could not delete existing backup file %s: %v", output, err)
	}
}

// abort closes the handle and deletes the partial artifact. Errors are only
// logged; the failure that caused the abort is what gets reported.
func (uc *Backup) abort(archive domain.Archive, output string) {
	if err := archive.Close(); err != nil && !errors.Is(err, domain.ErrArchiveClosed) {
		uc.logger.Debugf("Closing partial archive: %v", err)
	}
	uc.removeOutput(output)
}

func (uc *Backup) removeOutput(output string) {
	if err := uc.output.Remove(output); err != nil {
		uc.logger.Warnf("Could not delete partial backup file %s: %v", output, err)
	}
}

func (uc *Backup) fail(r *run, message string, err error) domain.BackupResult {
	kind := domain.KindOf(err)
	if kind == domain.KindCanceled {
		message = "Backup was cancelled."
	}

	r.progress.Stage = domain.StageFailed
	r.report(r.progress)

	uc.logger.Errorf("%s %v", message, err)
	return domain.BackupResult{
		OK:       false,
		Message:  fmt.Sprintf("%s %v", message, err),
		Kind:     kind,
		Err:      err,
		Stats:    r.stats,
		Started:  r.started,
		Finished: time.Now(),
	}
}
