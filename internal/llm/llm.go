// Package llm produces document summaries through a text-completion service.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultPrompt precedes the document text in every summary request.
const DefaultPrompt = "Summarize this text:\n"

// ErrEmptyResponse indicates the service answered without any content.
var ErrEmptyResponse = errors.New("llm: empty completion response")

// CompletionService generates text for a prompt.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer asks a completion service for a summary of a document's text.
type Summarizer struct {
	service CompletionService
	prompt  string
	logger  *zap.Logger
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithPrompt replaces DefaultPrompt. An empty prompt keeps the default.
func WithPrompt(prompt string) SummarizerOption {
	return func(s *Summarizer) {
		if prompt != "" {
			s.prompt = prompt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SummarizerOption {
	return func(s *Summarizer) { s.logger = l }
}

// NewSummarizer returns a Summarizer over service.
func NewSummarizer(service CompletionService, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{service: service, prompt: DefaultPrompt, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns the service's response to the prompt followed by text, unmodified.
// It makes exactly one call.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	out, err := s.service.Complete(ctx, s.prompt+text)
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}
	s.logger.Debug("summary generated", zap.Int("text_len", len(text)), zap.Int("summary_len", len(out)))
	return out, nil
}
