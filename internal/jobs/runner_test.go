package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-drs/crease.report/internal/frames"
	"github.com/pocket-drs/crease.report/internal/pitch"
	"github.com/pocket-drs/crease.report/internal/testutil"
)

func waitForTerminal(t *testing.T, store *Store, id string) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.Get(id)
		require.NoError(t, err)
		return job.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestRunnerSuccess(t *testing.T) {
	testutil.QuietLogs(t)
	store, _ := newTestStore(t)
	runner := NewRunner(store, 4)
	defer runner.Close()

	_, err := store.Create("job-1", []byte(`{}`))
	require.NoError(t, err)

	err = runner.Submit("job-1", func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		progress(35, "tracking")
		progress(100, "done")
		return &pitch.AnalysisResult{BallSpeedMps: 31.5}, nil
	})
	require.NoError(t, err)

	job := waitForTerminal(t, store, "job-1")
	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Equal(t, 100, job.Pct)
	assert.Contains(t, string(job.ResultJSON), `"ball_speed_mps":31.5`)
	assert.Empty(t, job.ErrorCode)
}

func TestRunnerFailureMapsErrorCode(t *testing.T) {
	testutil.QuietLogs(t)
	store, _ := newTestStore(t)
	runner := NewRunner(store, 4)
	defer runner.Close()

	_, err := store.Create("job-1", []byte(`{}`))
	require.NoError(t, err)

	err = runner.Submit("job-1", func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		return nil, fmt.Errorf("calibration: %w", pitch.ErrSingularCalibration)
	})
	require.NoError(t, err)

	job := waitForTerminal(t, store, "job-1")
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, CodeCalibrationDegenerate, job.ErrorCode)
	assert.Contains(t, job.ErrorMessage, "calibration")
	assert.Nil(t, job.ResultJSON)
}

func TestRunnerCancellation(t *testing.T) {
	testutil.QuietLogs(t)
	store, _ := newTestStore(t)
	runner := NewRunner(store, 4)
	defer runner.Close()

	_, err := store.Create("job-1", []byte(`{}`))
	require.NoError(t, err)

	started := make(chan struct{})
	err = runner.Submit("job-1", func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	<-started
	assert.True(t, runner.Cancel("job-1"))

	job := waitForTerminal(t, store, "job-1")
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, CodeCancelled, job.ErrorCode)
	assert.Nil(t, job.ResultJSON, "partial results are discarded on cancel")
}

func TestRunnerCancelUnknownJob(t *testing.T) {
	store, _ := newTestStore(t)
	runner := NewRunner(store, 4)
	defer runner.Close()

	assert.False(t, runner.Cancel("nope"))
}

func TestRunnerQueueFull(t *testing.T) {
	testutil.QuietLogs(t)
	store, _ := newTestStore(t)
	runner := NewRunner(store, 1)
	defer runner.Close()

	release := make(chan struct{})
	blocker := func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		<-release
		return &pitch.AnalysisResult{}, nil
	}

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("job-%d", i)
		_, err := store.Create(id, []byte(`{}`))
		require.NoError(t, err)
	}

	// First job occupies the worker, second fills the queue.
	require.NoError(t, runner.Submit("job-0", blocker))
	require.Eventually(t, func() bool {
		return runner.Submit("job-1", blocker) == nil
	}, time.Second, time.Millisecond)

	err := runner.Submit("job-2", blocker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")

	close(release)
	waitForTerminal(t, store, "job-1")
}

func TestRunnerCloseRejectsSubmit(t *testing.T) {
	store, _ := newTestStore(t)
	runner := NewRunner(store, 4)
	runner.Close()

	err := runner.Submit("job-1", func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cancelled", context.Canceled, CodeCancelled},
		{"deadline", context.DeadlineExceeded, CodeCancelled},
		{"singular calibration", fmt.Errorf("x: %w", pitch.ErrSingularCalibration), CodeCalibrationDegenerate},
		{"invalid request", fmt.Errorf("x: %w", pitch.ErrInvalidRequest), CodeInvalidRequest},
		{"empty track", fmt.Errorf("x: %w", pitch.ErrEmptyTrack), CodeVideoDecodeFailed},
		{"disposed provider", fmt.Errorf("x: %w", frames.ErrDisposed), CodeVideoDecodeFailed},
		{"insufficient data", &pitch.InsufficientDataError{Op: "fit", Have: 1, Need: 2}, CodeInsufficientData},
		{"unknown", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
