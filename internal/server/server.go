// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/evidence-engine/internal/export"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Tracer returns a passage together with its surrounding context.
type Tracer interface {
	Trace(ctx context.Context, passageID string) (string, error)
}

// Server routes HTTP requests to one pipeline Engine.
type Server struct {
	engine *pipeline.Engine
	tracer Tracer
	export *types.ExportConfig
	logger *slog.Logger
	router *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithTracer enables GET /v1/passages/{id}.
func WithTracer(t Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithExport writes every answered query as a session record.
func WithExport(cfg types.ExportConfig) Option {
	return func(s *Server) { s.export = &cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the router.
func New(engine *pipeline.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: slog.Default(),
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/v1/status", s.handleStatus)
	s.router.Post("/v1/ask", s.handleAsk)
	s.router.Get("/v1/passages/{id}", s.handlePassage)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type askRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"busy": s.engine.Busy()})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.engine.Run(r.Context(), types.Question(req.Question))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "ask failed", slog.String("error", err.Error()))
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	rec := export.FromResult(res)
	if s.export != nil {
		if path, err := export.WriteFile(rec, *s.export); err != nil {
			s.logger.WarnContext(r.Context(), "session export failed", slog.String("error", err.Error()))
		} else {
			s.logger.InfoContext(r.Context(), "session exported", slog.String("path", path))
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePassage(w http.ResponseWriter, r *http.Request) {
	if s.tracer == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "passage tracing is not available for this backend"})
		return
	}
	id := chi.URLParam(r, "id")
	text, err := s.tracer.Trace(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "context": text})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrEmptyQuestion), errors.Is(err, types.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrSearchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
