package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/ingestor/internal/app"
	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/models"
	"github.com/hyperjump/ingestor/internal/pipeline"
	"github.com/hyperjump/ingestor/internal/server"
	"github.com/hyperjump/ingestor/internal/vector/chromatest"
	"github.com/hyperjump/ingestor/test/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testBucket     = "ai-app-gcs"
	testCollection = "cast_highlight_reports"
	chromaToken    = "secret"
)

type stack struct {
	gcs    *FakeGCS
	ai     *FakeOpenAI
	chroma *chromatest.Server
	api    *httptest.Server
}

func newStack(t *testing.T, vec []float32) *stack {
	t.Helper()
	s := &stack{
		gcs:    NewFakeGCS(),
		ai:     NewFakeOpenAI("A greeting and a salutation.", vec),
		chroma: chromatest.NewServer(chromaToken),
	}
	t.Cleanup(s.gcs.Close)
	t.Cleanup(s.ai.Close)
	t.Cleanup(s.chroma.Close)

	cfg := &config.Config{
		Source: config.SourceConfig{
			Store:       "gcs",
			Bucket:      testBucket,
			DocumentID:  "r1",
			GCSEndpoint: s.gcs.Endpoint(),
		},
		Completion: config.CompletionConfig{Provider: "openai", Model: "gemini-pro", BaseURL: s.ai.BaseURL()},
		Embedding:  config.EmbeddingConfig{Provider: "openai", Model: "models/embedding-001", BaseURL: s.ai.BaseURL()},
		Vector:     config.VectorConfig{Backend: "chroma", URL: s.chroma.URL, Collection: testCollection},
		Auth:       config.AuthConfig{Mode: "static", Token: chromaToken},
		Retry:      config.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		APIKey:     "test-key",
	}
	config.ApplyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	logger := zaptest.NewLogger(t)
	svc, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	p := svc.NewPipeline(nil)
	batcher, err := pipeline.NewBatcher(p, cfg.Pipeline.Workers)
	require.NoError(t, err)
	t.Cleanup(batcher.Release)

	srv := server.NewServer(server.Deps{
		Pipeline:   p,
		Batcher:    batcher,
		Embedder:   svc.Embedder,
		Database:   svc.Database,
		Collection: svc.Collection,
	}, cfg, "", logger)
	s.api = httptest.NewServer(srv.Handler())
	t.Cleanup(s.api.Close)
	return s
}

func (s *stack) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.api.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestE2E_ProcessConfiguredDocument(t *testing.T) {
	s := newStack(t, []float32{0.1, 0.2, 0.3})
	s.gcs.Put(testBucket, "r1", fixtures.MinimalPDF("Hello", "World"))

	status, body := s.do(t, http.MethodPost, "/process", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"message":"Processing complete","file":"r1","gemini_summary":"A greeting and a salutation."}`, string(body))

	records := s.chroma.Records(testCollection)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, records[0].Embedding)
	assert.Equal(t, map[string]any{"file_name": "r1", "content": "Hello\nWorld"}, records[0].Metadata)

	prompts := s.ai.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Hello\nWorld")
	calls := s.ai.EmbeddingCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "models/embedding-001", calls[0].Model)
	assert.Equal(t, "Hello\nWorld", calls[0].Input)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", calls[0].TaskType)
}

func TestE2E_ReprocessReplacesRecord(t *testing.T) {
	s := newStack(t, []float32{0.1, 0.2, 0.3})
	s.gcs.Put(testBucket, "r1", fixtures.MinimalPDF("Hello", "World"))
	status, _ := s.do(t, http.MethodPost, "/process", nil)
	require.Equal(t, http.StatusOK, status)

	s.gcs.Put(testBucket, "r1", fixtures.MinimalPDF("Goodbye"))
	status, _ = s.do(t, http.MethodPost, "/process", models.ProcessRequest{File: "r1"})
	require.Equal(t, http.StatusOK, status)

	records := s.chroma.Records(testCollection)
	require.Len(t, records, 1)
	assert.Equal(t, "Goodbye", records[0].Metadata["content"])
}

func TestE2E_SummarizerFailureStillStores(t *testing.T) {
	s := newStack(t, []float32{0.1, 0.2, 0.3})
	s.gcs.Put(testBucket, "r1", fixtures.MinimalPDF("Hello", "World"))
	s.ai.SetFailChat(true)

	status, body := s.do(t, http.MethodPost, "/process", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"message":"Processing complete","file":"r1","gemini_summary":null}`, string(body))
	assert.Len(t, s.chroma.Records(testCollection), 1)
}

func TestE2E_EmbedderFailureWritesNothing(t *testing.T) {
	s := newStack(t, []float32{0.1, 0.2, 0.3})
	s.gcs.Put(testBucket, "r1", fixtures.MinimalPDF("Hello", "World"))
	s.ai.SetFailEmbeddings(true)

	status, body := s.do(t, http.MethodPost, "/process", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Contains(t, e.Error, "embed")
	assert.Empty(t, s.chroma.Records(testCollection))
	assert.Len(t, s.ai.EmbeddingCalls(), 2, "embedding retried up to retry.max_attempts")
}

func TestE2E_MissingDocument(t *testing.T) {
	s := newStack(t, []float32{0.1, 0.2, 0.3})

	status, body := s.do(t, http.MethodPost, "/process", models.ProcessRequest{File: "absent.pdf"})
	assert.Equal(t, http.StatusNotFound, status, string(body))
	assert.Empty(t, s.ai.Prompts())
	assert.Empty(t, s.ai.EmbeddingCalls())
}

func TestE2E_RejectedCredentialAborts(t *testing.T) {
	s := newStack(t, []float32{0.1, 0.2, 0.3})
	s.gcs.Put(testBucket, "r1", fixtures.MinimalPDF("Hello"))
	s.chroma.SetToken("rotated")

	status, body := s.do(t, http.MethodPost, "/process", nil)
	assert.Equal(t, http.StatusBadGateway, status, string(body))
	assert.Zero(t, s.chroma.Upserts())

	status, _ = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestE2E_BatchThenQuery(t *testing.T) {
	s := newStack(t, nil)
	corpus := BuildCorpus()
	files := make([]string, len(corpus))
	for i, r := range corpus {
		s.gcs.Put(testBucket, r.ID, r.Content())
		files[i] = r.ID
	}

	status, body := s.do(t, http.MethodPost, "/process/batch", models.BatchRequest{Files: files})
	require.Equal(t, http.StatusOK, status, string(body))
	var batch models.BatchResponse
	require.NoError(t, json.Unmarshal(body, &batch))
	assert.Equal(t, len(corpus), batch.Succeeded)
	assert.Zero(t, batch.Failed)
	for i, item := range batch.Results {
		assert.Equal(t, files[i], item.File)
		assert.True(t, item.Stored)
	}
	assert.Len(t, s.chroma.Records(testCollection), len(corpus))

	for _, r := range []Report{corpus[0], corpus[5], corpus[len(corpus)-1]} {
		status, body := s.do(t, http.MethodPost, "/query", models.QueryRequest{Text: r.Text, K: 3})
		require.Equal(t, http.StatusOK, status, string(body))
		var q models.QueryResponse
		require.NoError(t, json.Unmarshal(body, &q))
		require.Len(t, q.Results, 3)
		assert.Equal(t, r.ID, q.Results[0].ID, "query %q", r.Text)
		assert.InDelta(t, 0, q.Results[0].Distance, 1e-5)
	}
	calls := s.ai.EmbeddingCalls()
	assert.Equal(t, "RETRIEVAL_QUERY", calls[len(calls)-1].TaskType)

	status, body = s.do(t, http.MethodGet, "/records/"+corpus[2].ID, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var rec models.RecordResponse
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, corpus[2].Text, rec.Metadata["content"])

	status, body = s.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, status)
	var st models.StatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, len(corpus), st.Records)
	assert.Equal(t, testCollection, st.Collection)
}
