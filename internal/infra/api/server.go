package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/repository"
	"flashcard-generator/internal/infra/logging"
)

// Server exposes health, Prometheus metrics and the batch ledger.
type Server struct {
	jobs   repository.JobRepository // optional
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(jobs repository.JobRepository, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{jobs: jobs, log: logger}
}

// Router builds the chi router with the admin routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, TraceID, AccessLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/batches/{batchID}", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/", s.handleBatch)
	})
	return r
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type batchResponse struct {
	Summary model.BatchSummary `json:"summary"`
	Jobs    []jobView          `json:"jobs"`
}

type jobView struct {
	ID         string `json:"id"`
	Index      int    `json:"index"`
	File       string `json:"file"`
	Prompt     string `json:"prompt,omitempty"`
	Output     string `json:"output"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	Skipped    bool   `json:"skipped"`
	Cached     bool   `json:"cached"`
	Pages      int    `json:"pages"`
	DurationMs int64  `json:"duration_ms"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job ledger disabled"})
		return
	}
	batchID := chi.URLParam(r, "batchID")
	jobs, err := s.jobs.ListByBatch(r.Context(), batchID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return
	case err != nil:
		s.log.Error().Err(err).Str("batch_id", batchID).Msg("list batch")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp := batchResponse{
		Summary: model.NewResultSet(batchID, jobs).Summary(),
		Jobs:    make([]jobView, 0, len(jobs)),
	}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, jobView{
			ID: j.ID, Index: j.Index, File: j.DisplayName, Prompt: j.PromptName, Output: j.OutputPath,
			Status: string(j.Status), Attempts: j.Attempts, Error: j.LastError,
			Skipped: j.Skipped, Cached: j.Cached, Pages: j.Pages, DurationMs: j.Duration.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
