package docstore

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSStore reads objects through the Cloud Storage JSON API.
type GCSStore struct {
	svc    *storage.Service
	logger *zap.Logger
}

// GCSOption configures a GCSStore.
type GCSOption func(*gcsConfig)

type gcsConfig struct {
	logger *zap.Logger
	opts   []option.ClientOption
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GCSOption {
	return func(c *gcsConfig) { c.logger = l }
}

// WithTokenSource authenticates requests with ts.
func WithTokenSource(ts oauth2.TokenSource) GCSOption {
	return func(c *gcsConfig) { c.opts = append(c.opts, option.WithTokenSource(ts)) }
}

// WithEndpoint overrides the API base URL, e.g. for an emulator.
func WithEndpoint(url string) GCSOption {
	return func(c *gcsConfig) { c.opts = append(c.opts, option.WithEndpoint(url)) }
}

// WithoutAuthentication sends unauthenticated requests.
func WithoutAuthentication() GCSOption {
	return func(c *gcsConfig) { c.opts = append(c.opts, option.WithoutAuthentication()) }
}

// NewGCSStore creates a store backed by the Cloud Storage JSON API.
// Without a token source or WithoutAuthentication, application default credentials are used.
func NewGCSStore(ctx context.Context, opts ...GCSOption) (*GCSStore, error) {
	cfg := &gcsConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	svc, err := storage.NewService(ctx, cfg.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}
	return &GCSStore{svc: svc, logger: cfg.logger}, nil
}

// Get downloads the object bucket/key.
func (s *GCSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := s.svc.Objects.Get(bucket, key).Context(ctx).Download()
	if err != nil {
		switch {
		case IsNotFound(err):
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrNotFound)
		case IsUnauthorized(err):
			return nil, fmt.Errorf("gs://%s/%s: %w: %v", bucket, key, ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("failed to download gs://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("downloaded object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return data, nil
}
