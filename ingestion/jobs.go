package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// DefaultWorkers is the default number of concurrent ingestion jobs.
const DefaultWorkers = 2

// DefaultJobRetention is how long a finished job stays visible to Status
// and List.
const DefaultJobRetention = time.Hour

// ErrRunnerBusy is returned when every worker is occupied.
var ErrRunnerBusy = errors.New("all ingestion workers are busy")

// JobState is the lifecycle state of an asynchronous ingestion.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Finished reports whether the job will not change state again.
func (s JobState) Finished() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Job is a snapshot of an asynchronous ingestion.
type Job struct {
	ID         string
	Request    Request
	State      JobState
	Stage      Stage
	Result     *Result
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

type jobEntry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// JobRunner executes ingestions on a bounded ants worker pool.
type JobRunner struct {
	pipeline  *Pipeline
	pool      *ants.Pool
	ctx       context.Context
	stop      context.CancelFunc
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// RunnerOption configures a JobRunner.
type RunnerOption func(*runnerConfig) error

type runnerConfig struct {
	workers   int
	retention time.Duration
	logger    *slog.Logger
}

// WithWorkers sets the number of jobs that may run at once.
// Default is DefaultWorkers.
func WithWorkers(n int) RunnerOption {
	return func(c *runnerConfig) error {
		if n < 1 {
			n = 1
		}
		c.workers = n
		return nil
	}
}

// WithRetention sets how long finished jobs are kept before eviction.
// Default is DefaultJobRetention.
func WithRetention(d time.Duration) RunnerOption {
	return func(c *runnerConfig) error {
		if d <= 0 {
			return fmt.Errorf("job retention must be positive, got %s", d)
		}
		c.retention = d
		return nil
	}
}

// WithRunnerLogger sets a custom logger.
// Default is slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(c *runnerConfig) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewJobRunner creates a runner over pipeline. Call Release when done.
func NewJobRunner(pipeline *Pipeline, opts ...RunnerOption) (*JobRunner, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	cfg := &runnerConfig{
		workers:   DefaultWorkers,
		retention: DefaultJobRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(cfg.workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(context.Background())
	return &JobRunner{
		pipeline:  pipeline,
		pool:      pool,
		ctx:       ctx,
		stop:      stop,
		logger:    cfg.logger.With("component", "ingestion-jobs"),
		retention: cfg.retention,
		now:       func() time.Time { return time.Now().UTC() },
		jobs:      make(map[string]*jobEntry),
	}, nil
}

// Submit queues req and returns the new job. Fails with ErrRunnerBusy when
// no worker is free.
func (r *JobRunner) Submit(req Request) (Job, error) {
	if r.ctx.Err() != nil {
		return Job{}, ErrRunnerClosed
	}

	ctx, cancel := context.WithCancel(r.ctx)
	entry := &jobEntry{
		job: Job{
			ID:        uuid.NewString(),
			Request:   req,
			State:     JobQueued,
			CreatedAt: r.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.evictLocked()
	r.jobs[entry.job.ID] = entry
	snapshot := entry.job
	r.mu.Unlock()

	err := r.pool.Submit(func() { r.run(ctx, entry) })
	if err != nil {
		cancel()
		r.mu.Lock()
		delete(r.jobs, entry.job.ID)
		r.mu.Unlock()
		if errors.Is(err, ants.ErrPoolOverload) {
			return Job{}, ErrRunnerBusy
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return Job{}, ErrRunnerClosed
		}
		return Job{}, fmt.Errorf("submitting ingestion job: %w", err)
	}

	r.logger.Info("submitted ingestion job", "job", snapshot.ID, "url", req.URL, "tenant", req.Tenant)
	return snapshot, nil
}

func (r *JobRunner) run(ctx context.Context, entry *jobEntry) {
	defer close(entry.done)
	defer entry.cancel()

	r.update(entry, func(j *Job) {
		j.State = JobRunning
		j.StartedAt = r.now()
	})

	result, err := r.pipeline.IngestWithObserver(ctx, entry.job.Request, func(stage Stage) {
		r.update(entry, func(j *Job) { j.Stage = stage })
	})

	r.update(entry, func(j *Job) {
		j.Result = result
		j.FinishedAt = r.now()
		switch {
		case err == nil:
			j.State = JobSucceeded
		case errors.Is(err, context.Canceled):
			j.State = JobCancelled
			j.Error = err.Error()
		default:
			j.State = JobFailed
			j.Error = err.Error()
		}
	})
}

func (r *JobRunner) update(entry *jobEntry, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&entry.job)
}

// evictLocked drops jobs that finished more than the retention period ago.
// r.mu must be held.
func (r *JobRunner) evictLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, entry := range r.jobs {
		if entry.job.State.Finished() && entry.job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			r.logger.Debug("evicted ingestion job", "job", id, "state", entry.job.State)
		}
	}
}

// Status returns a snapshot of the job with the given id.
func (r *JobRunner) Status(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	entry, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return entry.job, nil
}

// List returns snapshots of every known job, oldest first.
func (r *JobRunner) List() []Job {
	r.mu.Lock()
	r.evictLocked()
	jobs := make([]Job, 0, len(r.jobs))
	for _, entry := range r.jobs {
		jobs = append(jobs, entry.job)
	}
	r.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Cancel requests cancellation of a job. Cancelling a finished job is a no-op.
func (r *JobRunner) Cancel(id string) error {
	r.mu.Lock()
	entry, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}
	entry.cancel()
	return nil
}

// Wait blocks until the job finishes or ctx is done.
func (r *JobRunner) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.Lock()
	entry, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-entry.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return entry.job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Release cancels running jobs and stops the worker pool.
func (r *JobRunner) Release() {
	r.stop()
	r.pool.Release()
}
