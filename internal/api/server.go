package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/roster/internal/actionlog"
	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/reputation"
	"github.com/MikeSquared-Agency/roster/internal/roster"
)

type Server struct {
	router  *chi.Mux
	port    int
	roster  *roster.Service
	engine  *reputation.Engine
	actions *actionlog.Log
	logger  *slog.Logger
	http    *http.Server
}

func NewServer(port int, apiToken string, svc *roster.Service, engine *reputation.Engine, actions *actionlog.Log, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		roster:  svc,
		engine:  engine,
		actions: actions,
		logger:  logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/roster/status", s.status)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Get("/templates", s.listTemplates)
		r.Post("/templates", s.createTemplate)
		r.Get("/templates/{templateID}", s.getTemplate)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/personas", s.listPersonas)
			r.Post("/personas", s.createPersona)
			r.Post("/personas/import-defaults", s.importDefaults)
			r.Patch("/personas/{personaID}", s.updatePersona)
			r.Get("/default-assignee", s.defaultAssignee)
		})

		r.Route("/personas/{personaID}", func(r chi.Router) {
			r.Get("/activities", s.listActivities)
			r.Post("/events", s.recordEvent)
			r.Post("/events/scored", s.recordScored)
			r.Get("/reputation", s.standing)
			r.Get("/verify", s.verify)
			r.Get("/actions", s.listActions)
			r.Post("/actions", s.recordAction)
		})

		r.Post("/actions/{actionID}/artifacts", s.attachArtifact)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":  "roster",
		"status": "ready",
	})
}

// BearerAuthMiddleware rejects requests without the configured token. An
// empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("Authorization") == "Bearer "+token {
				next.ServeHTTP(w, r)
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, persona.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, persona.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, persona.ErrInvalidState), errors.Is(err, persona.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, persona.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, persona.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %v: %w", err, persona.ErrInvalidInput)
	}
	return nil
}
