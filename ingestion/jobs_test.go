package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockUntilCancelled makes every fetch wait for cancellation and signals
// started once the first fetch is running.
func blockUntilCancelled(started chan<- struct{}) func(ctx context.Context, url string) (*fetch.Page, error) {
	return func(ctx context.Context, url string) (*fetch.Page, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, ctx.Err())
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewJobRunner(t *testing.T) {
	t.Run("nil pipeline", func(t *testing.T) {
		_, err := NewJobRunner(nil)
		assert.Equal(t, ErrPipelineRequired, err)
	})

	t.Run("with options", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline, WithWorkers(0), WithRunnerLogger(nil))
		require.NoError(t, err)
		defer r.Release()
		assert.Equal(t, 1, r.pool.Cap())
		assert.Equal(t, DefaultJobRetention, r.retention)
	})

	t.Run("invalid retention", func(t *testing.T) {
		env := setupPipeline(t)
		_, err := NewJobRunner(env.pipeline, WithRetention(0))
		assert.ErrorContains(t, err, "retention")
	})
}

func TestJobRunner(t *testing.T) {
	t.Run("successful job", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline)
		require.NoError(t, err)
		defer r.Release()

		job, err := r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, JobQueued, job.State)

		done, err := r.Wait(waitCtx(t), job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobSucceeded, done.State)
		assert.Equal(t, StageDone, done.Stage)
		require.NotNil(t, done.Result)
		assert.Equal(t, done.Result.Stored, env.count(t, "acme"))
		assert.Empty(t, done.Error)
		assert.False(t, done.FinishedAt.Before(done.StartedAt))
	})

	t.Run("failed job", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline)
		require.NoError(t, err)
		defer r.Release()

		job, err := r.Submit(Request{URL: "https://acme.test/missing", Tenant: "acme"})
		require.NoError(t, err)

		done, err := r.Wait(waitCtx(t), job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobFailed, done.State)
		assert.Equal(t, StageFailed, done.Stage)
		assert.Contains(t, done.Error, "fetching")
		assert.True(t, done.State.Finished())
	})

	t.Run("cancel running job", func(t *testing.T) {
		env := setupPipeline(t)
		started := make(chan struct{}, 1)
		env.fetcher.FetchFunc = blockUntilCancelled(started)
		r, err := NewJobRunner(env.pipeline)
		require.NoError(t, err)
		defer r.Release()

		job, err := r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		<-started

		running, err := r.Status(job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobRunning, running.State)
		assert.Equal(t, StageFetching, running.Stage)

		require.NoError(t, r.Cancel(job.ID))
		done, err := r.Wait(waitCtx(t), job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobCancelled, done.State)
		assert.Zero(t, env.count(t, "acme"))
	})

	t.Run("busy when every worker is occupied", func(t *testing.T) {
		env := setupPipeline(t)
		started := make(chan struct{}, 1)
		env.fetcher.FetchFunc = blockUntilCancelled(started)
		r, err := NewJobRunner(env.pipeline, WithWorkers(1))
		require.NoError(t, err)
		defer r.Release()

		first, err := r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		<-started

		_, err = r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		assert.ErrorIs(t, err, ErrRunnerBusy)
		assert.Len(t, r.List(), 1)

		require.NoError(t, r.Cancel(first.ID))
		_, err = r.Wait(waitCtx(t), first.ID)
		require.NoError(t, err)
	})

	t.Run("unknown job", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline)
		require.NoError(t, err)
		defer r.Release()

		_, err = r.Status("nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
		assert.ErrorIs(t, r.Cancel("nope"), ErrJobNotFound)
		_, err = r.Wait(waitCtx(t), "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("list is oldest first", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline, WithWorkers(4))
		require.NoError(t, err)
		defer r.Release()

		var ids []string
		for range 3 {
			job, err := r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
			require.NoError(t, err)
			_, err = r.Wait(waitCtx(t), job.ID)
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}

		jobs := r.List()
		require.Len(t, jobs, 3)
		for i, job := range jobs {
			assert.Equal(t, ids[i], job.ID)
		}
	})

	t.Run("finished jobs evicted after retention", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline, WithRetention(time.Hour))
		require.NoError(t, err)
		defer r.Release()

		var elapsed atomic.Int64
		r.now = func() time.Time { return time.Now().UTC().Add(time.Duration(elapsed.Load())) }

		finished, err := r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		_, err = r.Wait(waitCtx(t), finished.ID)
		require.NoError(t, err)

		started := make(chan struct{}, 1)
		env.fetcher.FetchFunc = blockUntilCancelled(started)
		running, err := r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		require.NoError(t, err)
		<-started

		elapsed.Add(int64(2 * time.Hour))
		jobs := r.List()
		require.Len(t, jobs, 1)
		assert.Equal(t, running.ID, jobs[0].ID)
		_, err = r.Status(finished.ID)
		assert.ErrorIs(t, err, ErrJobNotFound)

		require.NoError(t, r.Cancel(running.ID))
		done, err := r.Wait(waitCtx(t), running.ID)
		require.NoError(t, err)
		assert.Equal(t, JobCancelled, done.State)
		assert.Len(t, r.List(), 1)

		elapsed.Add(int64(2 * time.Hour))
		assert.Empty(t, r.List())
	})

	t.Run("submit after release", func(t *testing.T) {
		env := setupPipeline(t)
		r, err := NewJobRunner(env.pipeline)
		require.NoError(t, err)
		r.Release()

		_, err = r.Submit(Request{URL: "https://acme.test/", Tenant: "acme"})
		assert.ErrorIs(t, err, ErrRunnerClosed)
	})
}
