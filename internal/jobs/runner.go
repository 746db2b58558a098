package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pocket-drs/crease.report/internal/frames"
	"github.com/pocket-drs/crease.report/internal/monitoring"
	"github.com/pocket-drs/crease.report/internal/pitch"
)

// Error codes surfaced to API clients, matching the wire protocol's taxonomy.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeCalibrationDegenerate = "CALIBRATION_DEGENERATE"
	CodeVideoDecodeFailed     = "VIDEO_DECODE_FAILED"
	CodeInsufficientData      = "INSUFFICIENT_DATA"
	CodeCancelled             = "CANCELLED"
	CodeInternal              = "INTERNAL_ERROR"
)

// AnalysisFunc performs one job's analysis. The runner supplies the job's
// context (cancelled by Cancel or shutdown) and a progress callback that is
// persisted to the store.
type AnalysisFunc func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error)

// Runner executes jobs one at a time on a background goroutine. Tracking is
// long-running (many sequential frame decodes), so it never runs on the
// caller's goroutine; results come back through the store.
type Runner struct {
	store *Store

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool

	queue chan queuedJob
	done  chan struct{}
}

type queuedJob struct {
	id  string
	run AnalysisFunc
}

// NewRunner starts the worker goroutine. queueDepth bounds how many jobs may
// wait; Submit fails when the queue is full.
func NewRunner(store *Store, queueDepth int) *Runner {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	r := &Runner{
		store:   store,
		cancels: make(map[string]context.CancelFunc),
		queue:   make(chan queuedJob, queueDepth),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Submit enqueues a job that has already been created in the store.
func (r *Runner) Submit(id string, run AnalysisFunc) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("runner is shut down")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[id] = cancel
	r.mu.Unlock()

	select {
	case r.queue <- queuedJob{id: id, run: wrapWithContext(ctx, run)}:
		return nil
	default:
		r.removeCancel(id)
		return fmt.Errorf("job queue is full")
	}
}

func wrapWithContext(ctx context.Context, run AnalysisFunc) AnalysisFunc {
	return func(_ context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		return run(ctx, progress)
	}
}

// Cancel signals a queued or running job to stop. The tracker stops issuing
// frame requests after the current one; the job is marked failed with code
// CANCELLED and partial results are discarded.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) removeCancel(id string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()
}

// Close stops accepting jobs, cancels anything in flight, and waits for the
// worker to drain.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()

	close(r.queue)
	<-r.done
}

func (r *Runner) loop() {
	defer close(r.done)
	for job := range r.queue {
		r.runOne(job)
	}
}

func (r *Runner) runOne(job queuedJob) {
	defer r.removeCancel(job.id)

	progress := func(pct int, stage string) {
		if err := r.store.SetProgress(job.id, pct, stage); err != nil {
			monitoring.Logf("jobs: progress update for %s failed: %v", job.id, err)
		}
	}

	res, err := job.run(context.Background(), progress)
	if err != nil {
		code := ErrorCode(err)
		if err := r.store.SetFailed(job.id, code, err.Error()); err != nil {
			monitoring.Logf("jobs: marking %s failed: %v", job.id, err)
		}
		return
	}

	payload, err := json.Marshal(res)
	if err != nil {
		if err := r.store.SetFailed(job.id, CodeInternal, fmt.Sprintf("encode result: %v", err)); err != nil {
			monitoring.Logf("jobs: marking %s failed: %v", job.id, err)
		}
		return
	}
	if err := r.store.SetSucceeded(job.id, payload); err != nil {
		monitoring.Logf("jobs: marking %s succeeded: %v", job.id, err)
	}
}

// ErrorCode maps a pipeline error onto the wire protocol's error codes.
func ErrorCode(err error) string {
	var insufficient *pitch.InsufficientDataError
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, pitch.ErrSingularCalibration):
		return CodeCalibrationDegenerate
	case errors.Is(err, pitch.ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, pitch.ErrEmptyTrack), errors.Is(err, frames.ErrDisposed):
		return CodeVideoDecodeFailed
	case errors.As(err, &insufficient):
		return CodeInsufficientData
	default:
		return CodeInternal
	}
}
