package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperjump/ingestor/internal/auth"
	"github.com/hyperjump/ingestor/pkg/utils"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIService calls an OpenAI-compatible /embeddings endpoint. The task type is sent as the
// "task_type" request field, which task-aware providers honour and others ignore.
type OpenAIService struct {
	client     openai.Client
	dimensions int
}

// NewOpenAIService creates a service for baseURL. A positive dimensions requests
// output of that size from models that support truncation.
func NewOpenAIService(apiKey, baseURL string, dimensions int, opts ...option.RequestOption) *OpenAIService {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIService{client: openai.NewClient(reqOpts...), dimensions: dimensions}
}

// Embed implements Service.
func (s *OpenAIService) Embed(ctx context.Context, text, modelID, taskType string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          openai.EmbeddingModel(modelID),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if s.dimensions > 0 {
		params.Dimensions = openai.Int(int64(s.dimensions))
	}
	var reqOpts []option.RequestOption
	if taskType != "" {
		reqOpts = append(reqOpts, option.WithJSONSet("task_type", taskType))
	}

	resp, err := s.client.Embeddings.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyVector
	}
	return utils.Float64sToFloat32s(resp.Data[0].Embedding), nil
}

// classifyAPIError maps credential rejections onto auth.ErrUnauthorized.
func classifyAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("embedding request failed: %w: %v", auth.ErrUnauthorized, err)
	}
	return fmt.Errorf("embedding request failed: %w", err)
}
