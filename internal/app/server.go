package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jmiran15/chatmate-ingest/internal/api/handlers"
	"github.com/jmiran15/chatmate-ingest/internal/config"
	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/core/retrieval"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/queue"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, q *queue.Queue, retriever *retrieval.Retriever, log *logger.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(db, q, log)
	retrieveHandler := handlers.NewRetrieveHandler(retriever, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/documents", docHandler.CreateDocument)
		api.Post("/documents/{id}/ingest", docHandler.Reingest)
		api.Get("/documents/{id}/progress", docHandler.Progress)
		api.Post("/retrieve", retrieveHandler.Retrieve)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
