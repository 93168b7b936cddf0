// Package embedding turns text into fixed-dimension vectors through a pluggable model service.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Retrieval task types understood by task-aware embedding models.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

var (
	// ErrEmptyVector indicates the service returned no values.
	ErrEmptyVector = errors.New("embedding: empty vector")

	// ErrDimensionMismatch indicates a vector whose length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding: dimension mismatch")
)

// Service computes one embedding for text using the given model and task type.
type Service interface {
	Embed(ctx context.Context, text, modelID, taskType string) ([]float32, error)
}

// Embedder binds a Service to one model, a document task type, and a query task type.
type Embedder struct {
	service    Service
	model      string
	docTask    string
	queryTask  string
	dimensions int
}

// EmbedderConfig describes the fixed parameters of an Embedder.
type EmbedderConfig struct {
	Model string
	// DocumentTask is used when ingesting; QueryTask when searching.
	DocumentTask string
	QueryTask    string
	// Dimensions, when positive, is enforced on every returned vector.
	Dimensions int
}

// NewEmbedder returns an Embedder over service.
func NewEmbedder(service Service, cfg EmbedderConfig) *Embedder {
	return &Embedder{
		service:    service,
		model:      cfg.Model,
		docTask:    cfg.DocumentTask,
		queryTask:  cfg.QueryTask,
		dimensions: cfg.Dimensions,
	}
}

// Model returns the bound model id.
func (e *Embedder) Model() string { return e.model }

// Dimensions returns the enforced dimension, or 0 when unchecked.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed embeds document text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, e.docTask)
}

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, e.queryTask)
}

func (e *Embedder) embed(ctx context.Context, text, task string) ([]float32, error) {
	vec, err := e.service.Embed(ctx, text, e.model, task)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.dimensions)
	}
	return vec, nil
}
