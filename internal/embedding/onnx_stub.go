//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX embedding requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXService is unavailable without CGO.
type ONNXService struct{}

// NewONNXService always fails without CGO.
func NewONNXService(_, _ string, _, _ int) (*ONNXService, error) {
	return nil, errNoCGO
}

// Embed implements Service.
func (s *ONNXService) Embed(context.Context, string, string, string) ([]float32, error) {
	return nil, errNoCGO
}

// Close is a no-op.
func (s *ONNXService) Close() error { return nil }
