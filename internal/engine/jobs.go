package engine

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobKind names a long-running operation
type JobKind string

const (
	JobInstall JobKind = "install"
	JobUpdate  JobKind = "update"
)

// Job is a cancellable network operation started by the interactive layer
type Job struct {
	ID      uuid.UUID
	Kind    JobKind
	Target  string // user input for installs, plugin identity for updates
	Started time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Context is canceled when the job is abandoned
func (j *Job) Context() context.Context {
	return j.ctx
}

// Cancel abandons the job. The running operation cleans up after itself.
func (j *Job) Cancel() {
	j.cancel()
}

// jobs tracks in-flight jobs by ID
type jobs struct {
	mu      sync.Mutex
	running map[uuid.UUID]*Job
}

func newJobs() *jobs {
	return &jobs{running: make(map[uuid.UUID]*Job)}
}

// StartJob registers a job whose context derives from parent.
// Call FinishJob when the operation returns.
func (e *Engine) StartJob(parent context.Context, kind JobKind, target string) *Job {
	ctx, cancel := context.WithCancel(parent)
	job := &Job{
		ID:      uuid.New(),
		Kind:    kind,
		Target:  target,
		Started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}

	e.jobs.mu.Lock()
	e.jobs.running[job.ID] = job
	e.jobs.mu.Unlock()

	e.logger.Debug("job started", "job", job.ID, "kind", kind, "target", target)
	return job
}

// FinishJob releases the job's resources
func (e *Engine) FinishJob(job *Job) {
	job.cancel()

	e.jobs.mu.Lock()
	delete(e.jobs.running, job.ID)
	e.jobs.mu.Unlock()

	e.logger.Debug("job finished", "job", job.ID, "elapsed", time.Since(job.Started))
}

// Jobs lists in-flight jobs, oldest first
func (e *Engine) Jobs() []*Job {
	e.jobs.mu.Lock()
	defer e.jobs.mu.Unlock()

	list := make([]*Job, 0, len(e.jobs.running))
	for _, j := range e.jobs.running {
		list = append(list, j)
	}
	slices.SortFunc(list, func(a, b *Job) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return list
}

// CancelJobs abandons every in-flight job and returns how many there were
func (e *Engine) CancelJobs() int {
	list := e.Jobs()
	for _, j := range list {
		j.Cancel()
	}
	if len(list) > 0 {
		e.logger.Info("canceled jobs", "count", len(list))
	}
	return len(list)
}
