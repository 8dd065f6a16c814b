package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/poiesic/lumina/conversation"
	"github.com/poiesic/lumina/index"
	"github.com/poiesic/lumina/ingestion"
	"github.com/poiesic/lumina/storage"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "lumina-sales-agent"

// DefaultShutdownTimeout bounds how long ListenAndServe waits for open
// requests after its context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the orchestrator, the ingestion pipeline
// and lead storage.
type Server struct {
	orch     *conversation.Orchestrator
	pipeline *ingestion.Pipeline
	jobs     *ingestion.JobRunner
	leads    storage.LeadRepository
	hybrid   *index.Hybrid
	mux      *http.ServeMux
	started  time.Time
	shutdown time.Duration
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithJobRunner enables asynchronous ingestion and the job routes.
func WithJobRunner(jobs *ingestion.JobRunner) Option {
	return func(s *Server) error {
		s.jobs = jobs
		return nil
	}
}

// WithIndex enables the index stats route.
func WithIndex(hybrid *index.Hybrid) Option {
	return func(s *Server) error {
		s.hybrid = hybrid
		return nil
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %s", d)
		}
		s.shutdown = d
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "http")
		return nil
	}
}

// New creates a Server.
func New(orch *conversation.Orchestrator, pipeline *ingestion.Pipeline, leads storage.LeadRepository, opts ...Option) (*Server, error) {
	if orch == nil {
		return nil, ErrOrchestratorRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if leads == nil {
		return nil, ErrLeadRepositoryRequired
	}

	s := &Server{
		orch:     orch,
		pipeline: pipeline,
		leads:    leads,
		mux:      http.NewServeMux(),
		started:  time.Now(),
		shutdown: DefaultShutdownTimeout,
		logger:   slog.Default().With("component", "http"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("GET /api/ingest/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/ingest/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("DELETE /api/ingest/jobs/{id}", s.handleCancelJob)
	s.mux.HandleFunc("GET /api/leads", s.handleListLeads)
	s.mux.HandleFunc("POST /api/leads", s.handleCreateLead)
	s.mux.HandleFunc("GET /api/index/stats", s.handleStats)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Streaming responses have no write timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", listener.Addr().String())
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// envelope is the shared JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (s *Server) respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	}); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, message, nil)
}

func (s *Server) failErr(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.fail(w, status, fmt.Sprintf("%s: %v", prefix, err))
}

const msgBadJSON = "Request body must contain JSON data"

// decode reads a JSON body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, "Service is running normally", map[string]any{
		"status":  "healthy",
		"service": ServiceName,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.hybrid == nil {
		s.fail(w, http.StatusNotFound, "index stats are not enabled")
		return
	}
	stats, err := s.hybrid.Stats(r.Context())
	if err != nil {
		s.failErr(w, r, "Error reading index stats", err)
		return
	}
	s.respond(w, http.StatusOK, "", map[string]any{
		"dimension":         stats.Dimension,
		"vocabulary_id":     stats.VocabularyID,
		"records_by_tenant": stats.RecordsByTenant,
		"total_records":     stats.TotalRecords,
	})
}
