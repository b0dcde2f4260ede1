// Package server exposes the conversion pipeline over HTTP JSON plus a
// websocket progress feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/warraq-app/warraq/internal/common"
	"github.com/warraq-app/warraq/internal/history"
	"github.com/warraq-app/warraq/internal/pipeline"
)

// JobManager is the slice of the pipeline controller the API needs.
type JobManager interface {
	StartJob(files []string, outputDir string) (string, error)
	CancelJob()
	CurrentJob() *pipeline.Snapshot
}

// HistoryReader serves GET /jobs/recent.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.JobRecord, error)
}

// Service wires the HTTP handlers to the job manager.
type Service struct {
	jobs     JobManager
	history  HistoryReader
	hub      *Hub
	logger   *slog.Logger
	schema   *jsonschema.Schema
	upgrader websocket.Upgrader
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithHub(h *Hub) ServiceOption {
	return func(s *Service) { s.hub = h }
}

func WithHistoryReader(r HistoryReader) ServiceOption {
	return func(s *Service) { s.history = r }
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(jobs JobManager, opts ...ServiceOption) *Service {
	s := &Service{
		jobs:   jobs,
		logger: slog.Default(),
		schema: compileStartJobSchema(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the API mux.
func (s *Service) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleStartJob)
	mux.HandleFunc("POST /jobs/cancel", s.handleCancelJob)
	mux.HandleFunc("GET /jobs/current", s.handleCurrentJob)
	mux.HandleFunc("GET /jobs/recent", s.handleRecentJobs)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return requestID(mux)
}

// requestID tags every request with an ID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

type startJobRequest struct {
	Files     []string `json:"files"`
	OutputDir string   `json:"output_dir"`
}

func (s *Service) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var raw any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.schema.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, _ := json.Marshal(raw)
	var req startJobRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	jobID, err := s.jobs.StartJob(req.Files, req.OutputDir)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrJobRunning):
		writeError(w, http.StatusConflict, "a job is already running")
		return
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.logger.Error("api.start_job_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	s.logger.Info("api.job_started", "job_id", jobID, "files", len(req.Files),
		"request_id", common.RequestIDFromContext(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// handleCancelJob is idempotent: cancelling with no job running, or a job
// already finished, still returns 200.
func (s *Service) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	s.jobs.CancelJob()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func (s *Service) handleCurrentJob(w http.ResponseWriter, r *http.Request) {
	snap := s.jobs.CurrentJob()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no job has been started")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []history.JobRecord{})
		return
	}
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}
	jobs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("api.recent_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job history")
		return
	}
	if jobs == nil {
		jobs = []history.JobRecord{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "progress feed is not enabled")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws.upgrade_failed", "error", err)
		return
	}
	s.hub.addClient(conn)
	// Clients only listen; the read loop exists to observe disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.removeClient(conn)
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
