package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/semmidev/wpbackup/internal/domain"
)

// Job is the handle of a backup running in the background. Callers may
// poll Progress, wait on Done, or Cancel it.
type Job struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	observer domain.ProgressFunc
	done     chan struct{}

	mu       sync.RWMutex
	progress domain.Progress
	result   domain.BackupResult
}

func newJob(parent context.Context, observer domain.ProgressFunc) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		id:       uuid.NewString(),
		ctx:      ctx,
		cancel:   cancel,
		observer: observer,
		done:     make(chan struct{}),
		progress: domain.Progress{Stage: domain.StageIdle},
	}
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Progress() domain.Progress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

func (j *Job) State() domain.Stage {
	return j.Progress().Stage
}

func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the outcome and whether the job has finished.
func (j *Job) Result() (domain.BackupResult, bool) {
	select {
	case <-j.done:
	default:
		return domain.BackupResult{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, true
}

func (j *Job) Wait() domain.BackupResult {
	<-j.done
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Cancel asks the run to stop at its next checkpoint. The run then fails
// and removes its partial artifact.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) report(p domain.Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
	if j.observer != nil {
		j.observer(p)
	}
}

func (j *Job) finish(result domain.BackupResult) {
	j.mu.Lock()
	j.result = result
	j.mu.Unlock()
	j.cancel()
	close(j.done)
}
