package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainService embeds through a langchaingo embedder bound to a single model.
// Task types are not forwarded.
type LangChainService struct {
	model    string
	embedder embeddings.Embedder
}

// NewLangChainService wraps an existing langchaingo embedder for model.
func NewLangChainService(model string, e embeddings.Embedder) *LangChainService {
	return &LangChainService{model: model, embedder: e}
}

// NewLangChainOpenAIService builds a langchaingo embedder against an OpenAI-compatible host.
func NewLangChainOpenAIService(apiKey, baseURL, model string) (*LangChainService, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithEmbeddingModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain embedder: %w", err)
	}
	return NewLangChainService(model, e), nil
}

// Embed implements Service.
func (s *LangChainService) Embed(ctx context.Context, text, modelID, _ string) ([]float32, error) {
	if modelID != s.model {
		return nil, fmt.Errorf("embedder bound to model %q, got %q", s.model, modelID)
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, ErrEmptyVector
	}
	return vecs[0], nil
}
