package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainCompletion generates text through a langchaingo model.
type LangChainCompletion struct {
	model llms.Model
}

// NewLangChainCompletion wraps an existing langchaingo model.
func NewLangChainCompletion(model llms.Model) *LangChainCompletion {
	return &LangChainCompletion{model: model}
}

// NewLangChainOpenAI builds a langchaingo OpenAI-compatible model for baseURL.
func NewLangChainOpenAI(apiKey, baseURL, model string) (*LangChainCompletion, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain model: %w", err)
	}
	return NewLangChainCompletion(client), nil
}

// Complete sends prompt as a human message and returns the first choice.
func (c *LangChainCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}
	resp, err := c.model.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
