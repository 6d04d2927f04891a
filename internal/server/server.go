package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"

	"redirect-agent-backend/internal/cards"
	"redirect-agent-backend/internal/config"
	"redirect-agent-backend/internal/logging"
	"redirect-agent-backend/internal/redirect"
	"redirect-agent-backend/internal/types"
)

// QueryService is what the HTTP layer needs from redirect.Service.
type QueryService interface {
	Handle(ctx context.Context, req types.QueryRequest) (cards.Envelope, error)
	Reset(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type Server struct {
	router *chi.Mux
	svc    QueryService
	cfg    config.Config
	log    *logging.Logger
}

func NewServer(cfg config.Config, svc QueryService, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(log.Zerolog()))
	r.Use(correlationID)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: append([]string{"Accept", "Content-Type", CorrelationHeader}, requiredHeaders...),
		ExposedHeaders: []string{CorrelationHeader},
		MaxAge:         300,
	}))

	s := &Server{router: r, svc: svc, cfg: cfg, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/query", s.handleQuery)
	s.router.Delete("/sessions/{sessionID}", s.handleDeleteSession)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
		s.writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sessionID")
	if err := s.svc.Reset(r.Context(), sid); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps a failure from the query pipeline to a status code.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	switch {
	case errors.Is(err, redirect.ErrModel):
		s.writeError(w, http.StatusBadGateway, "language model request failed")
	case errors.Is(err, redirect.ErrStore):
		s.writeError(w, http.StatusServiceUnavailable, "session store request failed")
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
