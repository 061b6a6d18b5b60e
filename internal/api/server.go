package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samijaber1/aegis-tracker/internal/middleware"
	"github.com/samijaber1/aegis-tracker/internal/registry"
	"github.com/samijaber1/aegis-tracker/internal/replay"
	"github.com/samijaber1/aegis-tracker/internal/scheduler"
	"github.com/samijaber1/aegis-tracker/internal/storage"
)

const (
	requestIDHeader = "X-Request-ID"
	maxIngestBytes  = 4 << 20
)

type requestIDKey struct{}

// RequestID returns the request id assigned by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Options configures the server
type Options struct {
	Addr string
	// Scheduler is optional; without it /v1/audit reports unavailable and
	// readiness ignores evaluation freshness.
	Scheduler *scheduler.Scheduler
	// Metrics serves /metrics when set.
	Metrics     http.Handler
	EnableReset bool
	Logger      *zap.Logger
}

// Server is the HTTP API server
type Server struct {
	registry    *registry.Registry
	scheduler   *scheduler.Scheduler
	enableReset bool
	logger      *zap.Logger
	now         func() time.Time
	handler     http.Handler
	server      *http.Server
}

// NewServer creates a new API server over reg
func NewServer(reg *registry.Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		registry:    reg,
		scheduler:   opts.Scheduler,
		enableReset: opts.EnableReset,
		logger:      logger,
		now:         time.Now,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// SLO endpoints
	mux.HandleFunc("GET /v1/slo", s.handleSLOList)
	mux.HandleFunc("GET /v1/slo/{id}", s.handleSLOGet)

	// Ingestion
	mux.HandleFunc("POST /v1/observations", s.handleObservations)

	if opts.EnableReset {
		mux.HandleFunc("POST /v1/admin/reset", s.handleReset)
	}

	// Audit endpoint
	mux.HandleFunc("GET /v1/audit", s.handleAudit)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	// The server's own traffic is observed so definitions can target /v1/ routes.
	s.handler = s.requestID(s.logRequests(middleware.Observe(reg, mux)))

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	loaded := s.registry.Len()
	reasons := []string{}

	if loaded == 0 {
		reasons = append(reasons, "no SLOs loaded")
	}

	if s.scheduler != nil {
		if stale := s.scheduler.GetCache().Stale(s.now()); len(stale) > 0 {
			reasons = append(reasons, fmt.Sprintf("stale evaluations: %s", strings.Join(stale, ", ")))
		}
	}

	ready := len(reasons) == 0
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:      ready,
		SLOsLoaded: loaded,
		Reasons:    reasons,
	})
}

// handleSLOList handles GET /v1/slo
func (s *Server) handleSLOList(w http.ResponseWriter, r *http.Request) {
	opts, err := summaryOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, s.registry.Summaries(opts))
}

// handleSLOGet handles GET /v1/slo/{id}
func (s *Server) handleSLOGet(w http.ResponseWriter, r *http.Request) {
	opts, err := summaryOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	snap, ok := s.registry.Summary(id, opts)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("SLO not found: %s", id))
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func summaryOptions(r *http.Request) (registry.SummaryOptions, error) {
	var opts registry.SummaryOptions
	if v := r.URL.Query().Get("includeDefinition"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid includeDefinition: %q", v)
		}
		opts.IncludeDefinition = include
	}
	return opts, nil
}

// handleObservations handles POST /v1/observations
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	fixture, err := replay.Decode(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	res := fixture.Replay(s.registry)
	respondJSON(w, http.StatusAccepted, IngestResponse{Accepted: res.Accepted, Discarded: res.Discarded})
}

// handleReset handles POST /v1/admin/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reset(nil); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("reset failed: %v", err))
		return
	}

	s.logger.Warn("registry reset via admin endpoint", zap.String("request_id", RequestID(r.Context())))
	respondJSON(w, http.StatusOK, ResetResponse{Status: "reset", SLOsLoaded: s.registry.Len()})
}

// handleAudit handles GET /v1/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var audit storage.AuditStorage
	if s.scheduler != nil {
		audit = s.scheduler.GetAuditStorage()
	}
	if audit == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	filter, err := transitionFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := audit.QueryTransitions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query audit: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, AuditResponse{Transitions: records, Total: len(records)})
}

func transitionFilter(r *http.Request) (storage.TransitionFilter, error) {
	query := r.URL.Query()
	filter := storage.TransitionFilter{
		SLOID:  query.Get("sloID"),
		Status: query.Get("status"),
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		return filter, fmt.Errorf("invalid limit: %w", err)
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		return filter, fmt.Errorf("invalid offset: %w", err)
	}
	if filter.StartTime, err = timeParam(query.Get("startTime")); err != nil {
		return filter, fmt.Errorf("invalid startTime: %w", err)
	}
	if filter.EndTime, err = timeParam(query.Get("endTime")); err != nil {
		return filter, fmt.Errorf("invalid endTime: %w", err)
	}

	return filter, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func timeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type loggedWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *loggedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggedWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)

		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestID(r.Context())),
		)
	})
}
