package job

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/enrichflow/enrichflow/types"
)

// ProgressFunc reports runner progress in [0,100], optionally with a
// timeline event description.
type ProgressFunc func(progress float64, event string)

// Runner performs the actual work of a job. It receives a snapshot of the
// job (for its payload) and a progress reporter, and returns the result
// data or an error. The context is cancelled when the job is cancelled.
type Runner func(ctx context.Context, j *Job, update ProgressFunc) (any, error)

// Callbacks observe job outcomes. Each receives a post-transition snapshot.
// All fields are optional.
type Callbacks struct {
	OnProgress func(j *Job)
	OnComplete func(j *Job)
	OnError    func(j *Job, err error)
}

// Processor starts job runners asynchronously with bounded concurrency. Any
// runner error or panic is caught and recorded as the job's terminal failure
// state; the host process never crashes on a failing job.
type Processor struct {
	store  *Store
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewProcessor creates a processor running at most maxConcurrent runners
// at once.
func NewProcessor(store *Store, maxConcurrent int64, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Processor{
		store:  store,
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger.With(zap.String("component", "job_processor")),
	}
}

// StartJob admits the job into the active-processing set and launches its
// runner asynchronously. It fails with JOB_CONFLICT when the id is already
// active or the job is not pending. The runner's context is cancelled by
// CancelJob.
func (p *Processor) StartJob(ctx context.Context, id string, runner Runner, cb Callbacks) error {
	if runner == nil {
		return types.NewError(types.ErrValidation, "job runner must not be nil")
	}

	runCtx, cancel := context.WithCancel(ctx)
	snapshot, err := p.store.admit(id, cancel)
	if err != nil {
		cancel()
		return err
	}

	go p.run(runCtx, snapshot, runner, cb)
	return nil
}

func (p *Processor) run(ctx context.Context, j *Job, runner Runner, cb Callbacks) {
	defer p.store.release(j.ID)

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("job runner panicked: %v", rec)
			p.logger.Error("job runner panic", zap.String("job_id", j.ID), zap.Any("panic", rec))
			if snap, ok := p.store.fail(j.ID, msg); ok && cb.OnError != nil {
				cb.OnError(snap, types.NewError(types.ErrInternalError, msg))
			}
		}
	}()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		// CancelJob drives the job terminal before cancelling its context,
		// in which case fail is a no-op. Any other cancellation of the
		// start context must still not strand the job in processing.
		msg := fmt.Sprintf("job aborted while queued: %v", err)
		if snap, ok := p.store.fail(j.ID, msg); ok {
			p.logger.Warn("job aborted while queued", zap.String("job_id", j.ID), zap.Error(err))
			if cb.OnError != nil {
				cb.OnError(snap, types.NewError(types.ErrCancelled, msg).WithCause(err))
			}
			return
		}
		p.logger.Debug("job cancelled before acquiring a runner slot", zap.String("job_id", j.ID))
		return
	}
	defer p.sem.Release(1)

	update := func(progress float64, event string) {
		if snap, ok := p.store.setProgress(j.ID, progress, event); ok && cb.OnProgress != nil {
			cb.OnProgress(snap)
		}
	}

	p.logger.Info("job started", zap.String("job_id", j.ID), zap.String("kind", string(j.Kind)))

	result, err := runner(ctx, j, update)
	if err != nil {
		snap, ok := p.store.fail(j.ID, err.Error())
		if !ok {
			p.logger.Debug("discarding result of terminal job", zap.String("job_id", j.ID))
			return
		}
		p.logger.Warn("job failed", zap.String("job_id", j.ID), zap.Error(err))
		if cb.OnError != nil {
			cb.OnError(snap, err)
		}
		return
	}

	snap, ok := p.store.complete(j.ID, result)
	if !ok {
		p.logger.Debug("discarding result of terminal job", zap.String("job_id", j.ID))
		return
	}
	p.logger.Info("job completed", zap.String("job_id", j.ID))
	if cb.OnComplete != nil {
		cb.OnComplete(snap)
	}
}
