// Package api exposes the analysis pipeline over the job-oriented JSON
// protocol: submit a request for a job id, poll status with stage/percent,
// then fetch the result payload.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pocket-drs/crease.report/internal/frames"
	"github.com/pocket-drs/crease.report/internal/jobs"
	"github.com/pocket-drs/crease.report/internal/pitch"
	"github.com/pocket-drs/crease.report/internal/pitch/monitor"
	"github.com/pocket-drs/crease.report/internal/units"
	"github.com/pocket-drs/crease.report/internal/version"
)

// ANSI escape codes for request logging.
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// SourceFactory builds a frame source for a validated request. The default
// factory understands the "synthetic" kind; deployments wire real decoders
// here.
type SourceFactory func(req CreateJobRequest) (pitch.FrameSource, error)

// DefaultSourceFactory serves synthetic clips only.
func DefaultSourceFactory(req CreateJobRequest) (pitch.FrameSource, error) {
	switch req.Source.Kind {
	case "", "synthetic":
		dur := req.Source.DurationMs
		if dur <= 0 {
			dur = req.Segment.EndMs
		}
		clip := frames.NewSyntheticClip(dur)
		return frames.NewImageSource(frames.NewProvider(clip)), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", req.Source.Kind)
	}
}

// Server handles the job API.
type Server struct {
	store    *jobs.Store
	runner   *jobs.Runner
	analyzer *pitch.Analyzer
	sources  SourceFactory
	units    string
}

// NewServer wires the API over a store and runner. A nil analyzer gets the
// default pipeline configuration, a nil sources falls back to
// DefaultSourceFactory, and an invalid unit falls back to m/s.
func NewServer(store *jobs.Store, runner *jobs.Runner, analyzer *pitch.Analyzer, sources SourceFactory, speedUnits string) *Server {
	if analyzer == nil {
		analyzer = pitch.NewAnalyzer()
	}
	if sources == nil {
		sources = DefaultSourceFactory
	}
	if !units.IsValid(speedUnits) {
		speedUnits = units.MPS
	}
	return &Server{
		store:    store,
		runner:   runner,
		analyzer: analyzer,
		sources:  sources,
		units:    speedUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("[%s] %s %s %vms",
			statusCodeColor(lrw.statusCode), r.Method, r.URL.Path,
			time.Since(start).Milliseconds())
	})
}

// SetupRoutes registers the job API on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/jobs/{id}/status", s.handleJobStatus)
	mux.HandleFunc("GET /api/jobs/{id}/result", s.handleJobResult)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /api/jobs/{id}/charts/trajectory", s.handleTrajectoryChart)
	mux.HandleFunc("GET /api/jobs/{id}/charts/pitch-plane", s.handlePitchPlaneChart)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": APIError{Code: code, Message: message},
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"git_sha": version.GitSHA,
	})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, jobs.CodeInvalidRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, jobs.CodeInvalidRequest, err.Error())
		return
	}

	source, err := s.sources(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, jobs.CodeInvalidRequest, err.Error())
		return
	}

	payload, err := json.Marshal(req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, jobs.CodeInternal, err.Error())
		return
	}

	id := uuid.New().String()
	if _, err := s.store.Create(id, payload); err != nil {
		s.writeError(w, http.StatusInternalServerError, jobs.CodeInternal, err.Error())
		return
	}

	analysis := s.buildAnalysis(req, source)
	if err := s.runner.Submit(id, analysis); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, jobs.CodeInternal, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, CreateJobResponse{JobID: id, Status: string(jobs.StatusQueued)})
}

// buildAnalysis binds a validated request to a pipeline run.
func (s *Server) buildAnalysis(req CreateJobRequest, source pitch.FrameSource) jobs.AnalysisFunc {
	return func(ctx context.Context, progress pitch.ProgressFunc) (*pitch.AnalysisResult, error) {
		areq := pitch.AnalysisRequest{
			Frames:  source,
			Segment: pitch.Segment{StartMs: req.Segment.StartMs, EndMs: req.Segment.EndMs},
			Tracking: pitch.TrackingParams{
				SeedPx:         *req.Tracking.SeedPx,
				SampleFps:      req.Tracking.SampleFps,
				SearchRadiusPx: req.Tracking.SearchRadiusPx,
				MaxFrames:      req.Tracking.MaxFrames,
			},
			Calibration: req.CalibrationValue(),
			Progress:    progress,
		}
		if req.Overrides != nil {
			areq.Overrides = pitch.Overrides{
				BounceIndex: req.Overrides.BounceIndex,
				ImpactIndex: req.Overrides.ImpactIndex,
			}
		}
		return s.analyzer.Run(ctx, areq)
	}
}

func (s *Server) jobFromPath(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id := r.PathValue("id")
	job, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", fmt.Sprintf("job %s not found", id))
		return nil, false
	}
	return job, true
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return
	}

	resp := JobStatusResponse{JobID: job.ID, Status: string(job.Status)}
	if !job.Status.Terminal() || job.Status == jobs.StatusSucceeded {
		resp.Progress = &ProgressInfo{Pct: job.Pct, Stage: job.Stage}
	}
	if job.Status == jobs.StatusFailed {
		resp.Error = &APIError{Code: job.ErrorCode, Message: job.ErrorMessage}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return
	}

	switch job.Status {
	case jobs.StatusSucceeded:
		resp := map[string]interface{}{
			"job_id": job.ID,
			"status": string(job.Status),
			"result": json.RawMessage(job.ResultJSON),
		}
		var speed struct {
			BallSpeedMps float64 `json:"ball_speed_mps"`
		}
		if json.Unmarshal(job.ResultJSON, &speed) == nil {
			resp["ball_speed"] = map[string]interface{}{
				"value": units.ConvertSpeed(speed.BallSpeedMps, s.units),
				"units": s.units,
			}
		}
		s.writeJSON(w, http.StatusOK, resp)
	case jobs.StatusFailed:
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"job_id": job.ID,
			"status": string(job.Status),
			"error":  APIError{Code: job.ErrorCode, Message: job.ErrorMessage},
		})
	default:
		s.writeError(w, http.StatusConflict, "JOB_NOT_READY",
			fmt.Sprintf("job %s is %s", job.ID, job.Status))
	}
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return
	}
	if job.Status.Terminal() {
		s.writeError(w, http.StatusConflict, "JOB_NOT_CANCELLABLE",
			fmt.Sprintf("job %s already %s", job.ID, job.Status))
		return
	}
	s.runner.Cancel(job.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": "cancelling"})
}

func (s *Server) resultForChart(w http.ResponseWriter, r *http.Request) (*pitch.AnalysisResult, *jobs.Job, bool) {
	job, ok := s.jobFromPath(w, r)
	if !ok {
		return nil, nil, false
	}
	if job.Status != jobs.StatusSucceeded {
		s.writeError(w, http.StatusConflict, "JOB_NOT_READY",
			fmt.Sprintf("job %s is %s", job.ID, job.Status))
		return nil, nil, false
	}
	var res pitch.AnalysisResult
	if err := json.Unmarshal(job.ResultJSON, &res); err != nil {
		s.writeError(w, http.StatusInternalServerError, jobs.CodeInternal, err.Error())
		return nil, nil, false
	}
	return &res, job, true
}

func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	res, job, ok := s.resultForChart(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := monitor.RenderTrajectoryChart(w, res, "Delivery "+shortID(job.ID)); err != nil {
		log.Printf("api: render trajectory chart: %v", err)
	}
}

func (s *Server) handlePitchPlaneChart(w http.ResponseWriter, r *http.Request) {
	res, job, ok := s.resultForChart(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := monitor.RenderPitchPlaneChart(w, res, "Delivery "+shortID(job.ID)); err != nil {
		log.Printf("api: render pitch-plane chart: %v", err)
	}
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
