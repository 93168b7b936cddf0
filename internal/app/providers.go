package app

import (
	"context"
	"fmt"

	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/embedding"
	"github.com/hyperjump/ingestor/internal/llm"
	"go.uber.org/zap"
)

func newDocumentStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (docstore.DocumentStore, error) {
	switch cfg.Source.Store {
	case "gcs", "":
		opts := []docstore.GCSOption{docstore.WithLogger(logger.Named("gcs"))}
		if cfg.Source.GCSEndpoint != "" {
			opts = append(opts, docstore.WithEndpoint(cfg.Source.GCSEndpoint), docstore.WithoutAuthentication())
		}
		store, err := docstore.NewGCSStore(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "disk":
		return docstore.NewDiskStore(cfg.Source.DiskRoot), nil
	default:
		return nil, fmt.Errorf("unknown document store: %s (supported: gcs, disk)", cfg.Source.Store)
	}
}

func newCompletion(cfg *config.Config) (llm.CompletionService, error) {
	var (
		svc llm.CompletionService
		err error
	)
	c := cfg.Completion
	switch c.Provider {
	case "openai", "":
		svc, err = llm.NewOpenAICompletion(cfg.APIKey, c.BaseURL, c.Model)
	case "langchain":
		svc, err = llm.NewLangChainOpenAI(cfg.APIKey, c.BaseURL, c.Model)
	case "mock":
		svc = llm.NewMockCompletion(MockSummary)
	default:
		return nil, fmt.Errorf("unknown completion provider: %s (supported: openai, langchain, mock)", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create completion service: %w", err)
	}
	return llm.NewRateLimited(svc, c.RPS, c.Burst), nil
}

func (s *Services) newEmbeddings(cfg *config.Config) (embedding.Service, error) {
	var svc embedding.Service
	e := cfg.Embedding
	switch e.Provider {
	case "openai", "":
		svc = embedding.NewOpenAIService(cfg.APIKey, e.BaseURL, e.Dimensions)
	case "langchain":
		lc, err := embedding.NewLangChainOpenAIService(cfg.APIKey, e.BaseURL, e.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding service: %w", err)
		}
		svc = lc
	case "onnx":
		onnx, err := embedding.NewONNXService(e.Model, e.ModelPath, e.Dimensions, e.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding service: %w", err)
		}
		s.closers = append(s.closers, onnx)
		svc = onnx
	case "mock":
		svc = embedding.NewMockService(e.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, langchain, onnx, mock)", e.Provider)
	}
	svc = embedding.NewRateLimited(svc, e.RPS, e.Burst)
	return embedding.NewCachedService(svc, e.CacheSize), nil
}
