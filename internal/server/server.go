// Package server exposes the memory engine's administrative HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lethe-mem/lethe/internal/engine"
	"github.com/lethe-mem/lethe/internal/store"
)

// Server is the lethe HTTP API server.
type Server struct {
	engine  *engine.Engine
	store   store.Store
	metrics http.Handler
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over the given engine. metricsHandler may be nil.
func New(eng *engine.Engine, st store.Store, version string, metricsHandler http.Handler) *Server {
	s := &Server{
		engine:  eng,
		store:   st,
		metrics: metricsHandler,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/owners/{ownerID}", func(r chi.Router) {
			r.Post("/memories", s.handleIngest)
			r.Get("/memories", s.handleList)
			r.Delete("/memories", s.handleForgetAll)
			r.Delete("/memories/{category}/{key}", s.handleDeleteOne)
			r.Get("/context", s.handleContext)
			r.Get("/stats", s.handleStats)
			r.Post("/maintenance", s.handleMaintenance)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeOK := true
	if err := s.store.Ping(ctx); err != nil {
		storeOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if engine.IsValidation(err) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
