package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/embedding"
	"github.com/hyperjump/ingestor/internal/extract"
	"github.com/hyperjump/ingestor/internal/llm"
	"github.com/hyperjump/ingestor/internal/pipeline"
	"github.com/hyperjump/ingestor/internal/vector"
	"github.com/hyperjump/ingestor/test/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store      *docstore.MockStore
	completion *llm.MockCompletion
	embeddings *embedding.MockService
	db         *vector.MemoryDatabase
	collection vector.Collection
	cfg        *config.Config
	server     *Server
	handler    http.Handler
}

func newTestEnv(t *testing.T, watch WatchService, configPath string) *testEnv {
	t.Helper()
	env := &testEnv{
		store:      docstore.NewMockStore(),
		completion: llm.NewMockCompletion("A greeting and a salutation."),
		embeddings: embedding.NewFixedMockService([]float32{0.1, 0.2, 0.3}),
		db:         vector.NewMemoryDatabase(),
	}
	coll, err := env.db.GetOrCreateCollection(context.Background(), "cast_highlight_reports")
	require.NoError(t, err)
	env.collection = coll

	env.cfg = &config.Config{
		Source:     config.SourceConfig{Bucket: "ai-app-gcs", DocumentID: "r1"},
		Completion: config.CompletionConfig{Model: "gemini-pro"},
		Embedding:  config.EmbeddingConfig{Model: "models/embedding-001"},
		Vector:     config.VectorConfig{Backend: "memory", Collection: "cast_highlight_reports"},
	}
	config.ApplyDefaults(env.cfg)

	embedder := embedding.NewEmbedder(env.embeddings, embedding.EmbedderConfig{
		Model:        "models/embedding-001",
		DocumentTask: embedding.TaskRetrievalDocument,
		QueryTask:    embedding.TaskRetrievalQuery,
	})
	p := pipeline.New(env.store, extract.NewExtractor(), llm.NewSummarizer(env.completion), embedder, coll,
		pipeline.WithRetry(pipeline.RetryConfig{MaxAttempts: 1}))
	batcher, err := pipeline.NewBatcher(p, 2)
	require.NoError(t, err)
	t.Cleanup(batcher.Release)

	env.server = NewServer(Deps{
		Pipeline:   p,
		Batcher:    batcher,
		Embedder:   embedder,
		Database:   env.db,
		Collection: coll,
		Watch:      watch,
	}, env.cfg, configPath, nil)
	env.handler = env.server.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestHandleProcess_DefaultDocument(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.store.Put("ai-app-gcs", "r1", fixtures.MinimalPDF("Hello", "World"))

	w := env.do(t, http.MethodPost, "/process", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Processing complete","file":"r1","gemini_summary":"A greeting and a salutation."}`, w.Body.String())

	rec, err := env.collection.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", rec.Metadata["content"])
}

func TestHandleProcess_BodyOverridesDefaults(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.store.Put("other", "notes.txt", []byte("plain"))

	w := env.do(t, http.MethodPost, "/process", map[string]string{"file": "notes.txt", "bucket": "other"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "notes.txt", decode(t, w)["file"])
}

func TestHandleProcess_SummaryNullOnFailure(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.completion.Err = errors.New("quota exceeded")
	env.store.Put("ai-app-gcs", "r1", fixtures.MinimalPDF("Hello"))

	w := env.do(t, http.MethodPost, "/process", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	v, present := out["gemini_summary"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestHandleProcess_ErrorStatuses(t *testing.T) {
	t.Run("missing object", func(t *testing.T) {
		env := newTestEnv(t, nil, "")
		w := env.do(t, http.MethodPost, "/process", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		msg := decode(t, w)["error"]
		assert.Equal(t, "aborted while fetching: document not found", msg)
		assert.NotContains(t, msg, "ai-app-gcs")
	})
	t.Run("malformed document", func(t *testing.T) {
		env := newTestEnv(t, nil, "")
		env.store.Put("ai-app-gcs", "r1", []byte("garbage"))
		w := env.do(t, http.MethodPost, "/process", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
	t.Run("embedding failure", func(t *testing.T) {
		env := newTestEnv(t, nil, "")
		env.store.Put("ai-app-gcs", "r1", fixtures.MinimalPDF("Hello"))
		env.embeddings.Err = errors.New("model overloaded")
		w := env.do(t, http.MethodPost, "/process", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		n, err := env.collection.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
	t.Run("bad body", func(t *testing.T) {
		env := newTestEnv(t, nil, "")
		w := env.do(t, http.MethodPost, "/process", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleProcess_DiskBucketConfinedToRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("top secret"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "ok.txt"), []byte("fine"), 0600))

	env := newTestEnv(t, nil, "")
	embedder := embedding.NewEmbedder(env.embeddings, embedding.EmbedderConfig{Model: "models/embedding-001"})
	p := pipeline.New(docstore.NewDiskStore(root), extract.NewExtractor(), llm.NewSummarizer(env.completion),
		embedder, env.collection, pipeline.WithRetry(pipeline.RetryConfig{MaxAttempts: 1}))
	srv := NewServer(Deps{Pipeline: p, Embedder: embedder, Database: env.db, Collection: env.collection},
		env.cfg, "", nil)
	env.handler = srv.Handler()

	for _, bucket := range []string{"..", "docs/../..", parent} {
		w := env.do(t, http.MethodPost, "/process", map[string]string{"file": "secret.txt", "bucket": bucket})
		assert.Equal(t, http.StatusBadRequest, w.Code, bucket)
		msg := decode(t, w)["error"]
		assert.Equal(t, "aborted while fetching: invalid bucket", msg)
	}
	_, err := env.collection.Get(context.Background(), "secret.txt")
	assert.ErrorIs(t, err, vector.ErrNotFound)

	w := env.do(t, http.MethodPost, "/process", map[string]string{"file": "ok.txt", "bucket": "docs"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandleBatch(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.store.Put("ai-app-gcs", "a.txt", []byte("alpha"))
	env.store.Put("ai-app-gcs", "b.txt", []byte("beta"))

	w := env.do(t, http.MethodPost, "/process/batch", map[string]any{"files": []string{"a.txt", "missing.txt", "b.txt"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []struct {
			File   string `json:"file"`
			Stored bool   `json:"stored"`
			Error  string `json:"error"`
		} `json:"results"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a.txt", resp.Results[0].File)
	assert.True(t, resp.Results[0].Stored)
	assert.Equal(t, "missing.txt", resp.Results[1].File)
	assert.Equal(t, "aborted while fetching: document not found", resp.Results[1].Error)
	assert.Equal(t, "b.txt", resp.Results[2].File)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)

	w = env.do(t, http.MethodPost, "/process/batch", map[string]any{"files": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQueryAndRecord(t *testing.T) {
	env := newTestEnv(t, nil, "")
	ctx := context.Background()
	require.NoError(t, env.collection.Upsert(ctx, "r1", []float32{0.1, 0.2, 0.3}, map[string]any{"file_name": "r1", "content": "Hello"}))
	require.NoError(t, env.collection.Upsert(ctx, "r2", []float32{-0.3, 0.2, -0.1}, map[string]any{"file_name": "r2", "content": "Bye"}))

	w := env.do(t, http.MethodPost, "/query", map[string]any{"text": "greeting", "k": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].(map[string]any)["id"])

	calls := env.embeddings.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, embedding.TaskRetrievalQuery, calls[len(calls)-1].Task)

	w = env.do(t, http.MethodPost, "/query", map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/records/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"r1","embedding":[0.1,0.2,0.3],"metadata":{"file_name":"r1","content":"Hello"}}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/records/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealthAndStatus(t *testing.T) {
	env := newTestEnv(t, nil, "")
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "memory", out["backend"])
	assert.Equal(t, "cast_highlight_reports", out["collection"])
	assert.Equal(t, float64(0), out["records"])
	assert.Equal(t, "gemini-pro", out["completion_model"])
}

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func TestWatchDirectories(t *testing.T) {
	tmp := t.TempDir()
	docs := filepath.Join(tmp, "docs")
	require.NoError(t, os.MkdirAll(docs, 0755))
	configPath := filepath.Join(tmp, "config.yaml")

	env := newTestEnv(t, &mockWatchService{}, configPath)

	w := env.do(t, http.MethodPost, "/watch/directories", map[string]any{"path": docs, "sync": false})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/watch/directories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{docs}, decode(t, w)["directories"])

	saved, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), docs)

	w = env.do(t, http.MethodPost, "/watch/directories", map[string]any{"path": filepath.Join(tmp, "nope")})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/watch/directories?path="+docs, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.server.deps.Watch.Directories())
}

func TestWatchDirectories_NotEnabled(t *testing.T) {
	env := newTestEnv(t, nil, "")
	w := env.do(t, http.MethodGet, "/watch/directories", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(&pipeline.StageError{Err: &pipeline.FetchError{NotFound: true, Err: docstore.ErrNotFound}}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&pipeline.StageError{Err: &pipeline.FetchError{Err: errors.New("reset")}}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&pipeline.StageError{Err: &extract.ExtractError{Err: errors.New("bad")}}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&pipeline.StageError{Err: &pipeline.StoreError{Err: errors.New("down")}}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&pipeline.StageError{Err: &pipeline.AuthError{Err: errors.New("denied")}}))
	assert.Equal(t, http.StatusBadRequest, statusFor(&pipeline.StageError{Err: &pipeline.FetchError{Err: docstore.ErrInvalidBucket}}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
