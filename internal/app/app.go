// Package app builds the process-wide services shared by every ingestion run.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/ingestor/internal/auth"
	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/embedding"
	"github.com/hyperjump/ingestor/internal/extract"
	"github.com/hyperjump/ingestor/internal/llm"
	"github.com/hyperjump/ingestor/internal/pipeline"
	"github.com/hyperjump/ingestor/internal/vector"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MockSummary is the response of the "mock" completion provider.
const MockSummary = "mock summary"

// Services bundles the long-lived collaborators of the pipeline. Build it once with New and
// release it with Close.
type Services struct {
	Config      *config.Config
	Logger      *zap.Logger
	Credentials *auth.Provider
	Store       docstore.DocumentStore
	Extractor   *extract.Extractor
	Completion  llm.CompletionService
	Summarizer  *llm.Summarizer
	Embeddings  embedding.Service
	Embedder    *embedding.Embedder
	Database    vector.Database
	Collection  vector.Collection

	closers []io.Closer
}

// New connects every service described by cfg. The vector database heartbeat is probed and the
// collection is opened before New returns; either failing is fatal.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Services{Config: cfg, Logger: logger, Extractor: extract.NewExtractor()}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	src, err := auth.NewSource(auth.SourceConfig{
		Mode:     cfg.Auth.Mode,
		Audience: cfg.Auth.Audience,
		Token:    cfg.Auth.Token,
		Timeout:  cfg.Auth.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure credentials: %w", err)
	}
	s.Credentials = auth.NewProvider(src,
		auth.WithEarlyExpiry(cfg.Auth.EarlyExpiry),
		auth.WithLogger(logger.Named("auth")))

	if s.Store, err = newDocumentStore(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if s.Completion, err = newCompletion(cfg); err != nil {
		return nil, err
	}
	s.Summarizer = llm.NewSummarizer(s.Completion,
		llm.WithPrompt(cfg.Completion.Prompt),
		llm.WithLogger(logger.Named("llm")))

	if s.Embeddings, err = s.newEmbeddings(cfg); err != nil {
		return nil, err
	}
	s.Embedder = embedding.NewEmbedder(s.Embeddings, embedding.EmbedderConfig{
		Model:        cfg.Embedding.Model,
		DocumentTask: cfg.Embedding.TaskType,
		QueryTask:    cfg.Embedding.QueryTaskType,
		Dimensions:   cfg.Embedding.Dimensions,
	})

	s.Database, err = vector.Open(ctx, vector.Config{
		Backend: cfg.Vector.Backend,
		URL:     cfg.Vector.URL,
		Path:    cfg.Vector.Path,
		DSN:     cfg.Vector.DSN,
	},
		vector.WithLogger(logger.Named("vector")),
		vector.WithAPIPath(cfg.Vector.APIPath),
		vector.WithHTTPClient(s.httpClient(cfg.Pipeline.StepTimeout)))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	s.closers = append(s.closers, s.Database)

	hbCtx, cancel := context.WithTimeout(ctx, stepTimeout(cfg))
	defer cancel()
	if err := s.Database.Heartbeat(hbCtx); err != nil {
		return nil, fmt.Errorf("vector database heartbeat failed: %w", err)
	}
	if s.Collection, err = s.Database.GetOrCreateCollection(ctx, cfg.Vector.Collection); err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", cfg.Vector.Collection, err)
	}

	logger.Info("services ready",
		zap.String("store", cfg.Source.Store),
		zap.String("completion", cfg.Completion.Provider+"/"+cfg.Completion.Model),
		zap.String("embedding", cfg.Embedding.Provider+"/"+cfg.Embedding.Model),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.String("collection", cfg.Vector.Collection),
		zap.Bool("authenticated", s.Credentials.Enabled()))
	ok = true
	return s, nil
}

// httpClient returns the authenticated client used for the vector database.
func (s *Services) httpClient(timeout time.Duration) *http.Client {
	c := auth.NewHTTPClient(s.Credentials, nil)
	c.Timeout = timeout
	return c
}

func stepTimeout(cfg *config.Config) time.Duration {
	if cfg.Pipeline.StepTimeout > 0 {
		return cfg.Pipeline.StepTimeout
	}
	return 30 * time.Second
}

// NewPipeline returns a pipeline over store, or over the configured store when store is nil.
func (s *Services) NewPipeline(store docstore.DocumentStore, opts ...pipeline.Option) *pipeline.Pipeline {
	if store == nil {
		store = s.Store
	}
	cfg := s.Config
	base := []pipeline.Option{
		pipeline.WithLogger(s.Logger.Named("pipeline")),
		pipeline.WithStepTimeout(cfg.Pipeline.StepTimeout),
		pipeline.WithContentPreview(cfg.Pipeline.ContentPreview),
		pipeline.WithRetry(pipeline.RetryConfig{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		}),
	}
	return pipeline.New(store, s.Extractor, s.Summarizer, s.Embedder, s.Collection, append(base, opts...)...)
}

// Close releases every service, returning all close errors combined.
func (s *Services) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i].Close())
	}
	s.closers = nil
	return err
}
