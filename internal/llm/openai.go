package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAICompletion calls an OpenAI-compatible chat completions endpoint.
type OpenAICompletion struct {
	client openai.Client
	model  string
}

// NewOpenAICompletion creates a client for model. An empty baseURL uses the OpenAI default.
func NewOpenAICompletion(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenAICompletion, error) {
	if model == "" {
		return nil, fmt.Errorf("completion model is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAICompletion{client: openai.NewClient(reqOpts...), model: model}, nil
}

// Model returns the configured model id.
func (c *OpenAICompletion) Model() string { return c.model }

// Complete sends prompt as a single user message and returns the first choice.
func (c *OpenAICompletion) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
