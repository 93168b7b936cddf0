//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/ingestor/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXService runs a local BERT-style ONNX model. It requires CGO and the onnxruntime shared library.
// The model id passed to Embed must equal the configured name; task types are ignored.
type ONNXService struct {
	name       string
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Tensors are bound to the session once; Embed overwrites input data and reads the output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXService loads modelPath under the given model name.
func NewONNXService(name, modelPath string, dimensions, maxTokens int) (*ONNXService, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("onnx embedding requires a positive dimension")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := &HashTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)
	shape := ort.NewShape(1, int64(len(inputIDs)))

	var tensors []interface{ Destroy() error }
	cleanup := func() {
		for _, t := range tensors {
			_ = t.Destroy()
		}
	}

	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	tensors = append(tensors, inputIDsTensor)
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tensors = append(tensors, attentionMaskTensor)
	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	tensors = append(tensors, tokenTypeIDsTensor)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	tensors = append(tensors, outputTensor)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXService{
		name:                name,
		session:             session,
		dimensions:          dimensions,
		maxTokens:           len(inputIDs),
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Embed implements Service.
func (s *ONNXService) Embed(ctx context.Context, text, modelID, _ string) ([]float32, error) {
	if modelID != s.name {
		return nil, fmt.Errorf("onnx model %q cannot serve %q", s.name, modelID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := s.tokenizer.Tokenize(text, s.maxTokens)
	copy(s.inputIDsTensor.GetData(), inputIDs)
	copy(s.attentionMaskTensor.GetData(), attentionMask)
	copy(s.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, s.dimensions)
	copy(vec, s.outputTensor.GetData())
	utils.UnitVector(vec)
	return vec, nil
}

// Close destroys the session and tensors.
func (s *ONNXService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	_ = s.inputIDsTensor.Destroy()
	_ = s.attentionMaskTensor.Destroy()
	_ = s.tokenTypeIDsTensor.Destroy()
	_ = s.outputTensor.Destroy()
	s.inputIDsTensor, s.attentionMaskTensor, s.tokenTypeIDsTensor, s.outputTensor = nil, nil, nil, nil
	return err
}
