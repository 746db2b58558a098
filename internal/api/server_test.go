package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-drs/crease.report/internal/jobs"
	"github.com/pocket-drs/crease.report/internal/pitch"
	"github.com/pocket-drs/crease.report/internal/testutil"
	"github.com/pocket-drs/crease.report/internal/timeutil"
	"github.com/pocket-drs/crease.report/internal/units"
)

func newTestServer(t *testing.T) (*Server, *jobs.Store, http.Handler) {
	t.Helper()
	testutil.QuietLogs(t)

	store, err := jobs.NewStore(testutil.TempDBPath(t), timeutil.RealClock{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := jobs.NewRunner(store, 8)
	t.Cleanup(runner.Close)

	server := NewServer(store, runner, nil, nil, units.KPH)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	return server, store, mux
}

func validCreateRequest() CreateJobRequest {
	seed := pitch.PixelPoint{X: 600, Y: 60}
	return CreateJobRequest{
		Source:  SourceRequest{Kind: "synthetic", DurationMs: 800},
		Segment: SegmentRequest{StartMs: 0, EndMs: 800},
		Tracking: TrackingRequest{
			SeedPx:         &seed,
			SampleFps:      30,
			SearchRadiusPx: 40,
		},
		Calibration: CalibrationRequest{
			PitchCornersPx: []pitch.PixelPoint{
				{X: 0, Y: 360}, {X: 0, Y: 0}, {X: 640, Y: 0}, {X: 640, Y: 360},
			},
			PitchDimensionsM: PitchDimensions{Length: 20.12, Width: 3.05},
		},
	}
}

func postJob(t *testing.T, mux http.Handler, req CreateJobRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body)))
	return rec
}

func pollUntilTerminal(t *testing.T, mux http.Handler, id string) JobStatusResponse {
	t.Helper()
	var status JobStatusResponse
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		status = JobStatusResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		return status.Status == string(jobs.StatusSucceeded) || status.Status == string(jobs.StatusFailed)
	}, 30*time.Second, 20*time.Millisecond)
	return status
}

func TestSubmitPollResult(t *testing.T) {
	_, _, mux := newTestServer(t)

	rec := postJob(t, mux, validCreateRequest())
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.JobID)
	assert.Equal(t, string(jobs.StatusQueued), created.Status)

	status := pollUntilTerminal(t, mux, created.JobID)
	require.Equal(t, string(jobs.StatusSucceeded), status.Status, "error: %+v", status.Error)
	require.NotNil(t, status.Progress)
	assert.Equal(t, 100, status.Progress.Pct)
	assert.Equal(t, pitch.StageDone, status.Progress.Stage)

	resRec := httptest.NewRecorder()
	mux.ServeHTTP(resRec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.JobID+"/result", nil))
	require.Equal(t, http.StatusOK, resRec.Code)

	var payload struct {
		JobID  string               `json:"job_id"`
		Status string               `json:"status"`
		Result pitch.AnalysisResult `json:"result"`
		Speed  struct {
			Value float64 `json:"value"`
			Units string  `json:"units"`
		} `json:"ball_speed"`
	}
	require.NoError(t, json.Unmarshal(resRec.Body.Bytes(), &payload))
	assert.Equal(t, created.JobID, payload.JobID)
	assert.NotEmpty(t, payload.Result.Track.Points)
	assert.NotEmpty(t, payload.Result.Trajectory)
	assert.NotEmpty(t, payload.Result.Lbw.Decision)
	assert.Equal(t, units.KPH, payload.Speed.Units)
	assert.InDelta(t, payload.Result.BallSpeedMps*3.6, payload.Speed.Value, 1e-9)
}

func TestSubmitValidation(t *testing.T) {
	_, _, mux := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(*CreateJobRequest)
	}{
		{"inverted segment", func(r *CreateJobRequest) { r.Segment.EndMs = 0 }},
		{"missing seed", func(r *CreateJobRequest) { r.Tracking.SeedPx = nil }},
		{"fps too high", func(r *CreateJobRequest) { r.Tracking.SampleFps = 500 }},
		{"zero search radius", func(r *CreateJobRequest) { r.Tracking.SearchRadiusPx = 0 }},
		{"three corners", func(r *CreateJobRequest) {
			r.Calibration.PitchCornersPx = r.Calibration.PitchCornersPx[:3]
		}},
		{"zero pitch width", func(r *CreateJobRequest) { r.Calibration.PitchDimensionsM.Width = 0 }},
		{"unknown source kind", func(r *CreateJobRequest) { r.Source.Kind = "rtsp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			rec := postJob(t, mux, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Error APIError `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, jobs.CodeInvalidRequest, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	_, _, mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDegenerateCalibrationFailsJob(t *testing.T) {
	_, _, mux := newTestServer(t)

	req := validCreateRequest()
	req.Calibration.PitchCornersPx = []pitch.PixelPoint{
		{X: 0, Y: 0}, {X: 100, Y: 100}, {X: 200, Y: 200}, {X: 300, Y: 300},
	}

	rec := postJob(t, mux, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	status := pollUntilTerminal(t, mux, created.JobID)
	require.Equal(t, string(jobs.StatusFailed), status.Status)
	require.NotNil(t, status.Error)
	assert.Equal(t, jobs.CodeCalibrationDegenerate, status.Error.Code)
}

func TestResultBeforeCompletionConflicts(t *testing.T) {
	_, store, mux := newTestServer(t)

	_, err := store.Create("job-pending", []byte(`{}`))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-pending/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUnknownJobIs404(t *testing.T) {
	_, _, mux := newTestServer(t)

	for _, path := range []string{
		"/api/jobs/nope/status",
		"/api/jobs/nope/result",
		"/api/jobs/nope/charts/trajectory",
		"/api/jobs/nope/charts/pitch-plane",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	_, store, mux := newTestServer(t)

	_, err := store.Create("job-done", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.SetSucceeded("job-done", []byte(`{}`)))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/job-done", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChartsRenderFromStoredResult(t *testing.T) {
	_, _, mux := newTestServer(t)

	rec := postJob(t, mux, validCreateRequest())
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	status := pollUntilTerminal(t, mux, created.JobID)
	require.Equal(t, string(jobs.StatusSucceeded), status.Status)

	for _, chart := range []string{"trajectory", "pitch-plane"} {
		path := fmt.Sprintf("/api/jobs/%s/charts/%s", created.JobID, chart)
		chartRec := httptest.NewRecorder()
		mux.ServeHTTP(chartRec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, chartRec.Code, chart)
		assert.Contains(t, chartRec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, chartRec.Body.String(), "echarts", chart)
	}
}

func TestHealthz(t *testing.T) {
	_, _, mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
