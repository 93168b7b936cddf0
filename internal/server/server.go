// Package server exposes ingestion over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/pipeline"
	"github.com/hyperjump/ingestor/internal/vector"
	"go.uber.org/zap"
)

// QueryEmbedder embeds search text with the query task type.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// WatchService is implemented by the directory watcher.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Pipeline   *pipeline.Pipeline
	Batcher    *pipeline.Batcher
	Embedder   QueryEmbedder
	Database   vector.Database
	Collection vector.Collection
	// Watch is optional; the watch endpoints answer 501 without it.
	Watch WatchService
}

// Server is the HTTP server for the ingestion API.
type Server struct {
	deps       Deps
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server. configPath, when set, is rewritten as watch directories change.
func NewServer(deps Deps, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, configPath: configPath, logger: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.config.Server.WriteTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.WriteTimeout))
	}

	r.Post("/process", s.handleProcess)
	r.Post("/process/batch", s.handleBatch)
	r.Post("/query", s.handleQuery)
	r.Get("/records/{id}", s.handleGetRecord)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Get("/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	return r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout + 5*time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
