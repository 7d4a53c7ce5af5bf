// Package server exposes the scoring pipeline over HTTP: upload, progress
// polling and streaming, logs, artifact download, history and stats.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/leadworks/salesfilter/internal/job"
	"github.com/leadworks/salesfilter/internal/store"
)

// maxUploadBytes bounds the multipart upload size.
const maxUploadBytes = 32 << 20

// Server wires the HTTP handlers to the orchestrator and store.
type Server struct {
	store store.Store
	orch  *job.Orchestrator
}

func New(st store.Store, orch *job.Orchestrator) *Server {
	return &Server{store: st, orch: orch}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Post("/process", s.handleProcess)
	r.Get("/progress/{id}", s.handleProgress)
	r.Get("/progress/stream/{id}", s.handleProgressStream)
	r.Get("/logs/{id}", s.handleLogs)
	r.Get("/download/{id}", s.handleDownload)
	r.Get("/history", s.handleHistory)
	r.Get("/history/{id}", s.handleJobSummary)
	r.Get("/stats", s.handleStats)

	return r
}

// requestLogger logs completed requests with the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
