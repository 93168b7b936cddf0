package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hyperjump/ingestor/internal/auth"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultChromaAPIPath is the REST prefix of Chroma's v1 API.
const DefaultChromaAPIPath = "/api/v1"

// HTTPError is a non-success response from a remote vector store.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("vector store returned %d: %s", e.StatusCode, e.Message)
}

// ChromaDatabase talks to a Chroma server over its REST API.
type ChromaDatabase struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewChromaDatabase returns a client for the server at baseURL. Authentication, if any,
// comes from the transport of the configured HTTP client.
func NewChromaDatabase(baseURL string, opts ...Option) (*ChromaDatabase, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("chroma url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid chroma url: %w", err)
	}
	o := newOptions(opts)
	apiPath := o.apiPath
	if apiPath == "" {
		apiPath = DefaultChromaAPIPath
	}
	return &ChromaDatabase{
		baseURL: strings.TrimRight(baseURL, "/") + "/" + strings.Trim(apiPath, "/"),
		client:  o.httpClient,
		logger:  o.logger,
	}, nil
}

func (d *ChromaDatabase) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s %s: %w: %v", method, path, auth.ErrUnauthorized, httpErr)
		case http.StatusNotFound:
			return fmt.Errorf("%s %s: %w: %v", method, path, ErrNotFound, httpErr)
		}
		return fmt.Errorf("%s %s: %w", method, path, httpErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body of unknown shape.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "detail", "error"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String {
				return r.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// Heartbeat implements Database.
func (d *ChromaDatabase) Heartbeat(ctx context.Context) error {
	var raw json.RawMessage
	if err := d.do(ctx, http.MethodGet, "/heartbeat", nil, &raw); err != nil {
		return fmt.Errorf("chroma heartbeat failed: %w", err)
	}
	d.logger.Debug("chroma heartbeat", zap.Int64("nanoseconds", gjson.GetBytes(raw, "nanosecond heartbeat").Int()))
	return nil
}

type chromaCollectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetOrCreateCollection implements Database. New collections use cosine distance.
func (d *ChromaDatabase) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	req := map[string]any{
		"name":          name,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
		"get_or_create": true,
	}
	var resp chromaCollectionResponse
	if err := d.do(ctx, http.MethodPost, "/collections", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get or create collection %q: %w", name, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("chroma returned no id for collection %q", name)
	}
	d.logger.Info("chroma collection ready", zap.String("collection", name), zap.String("id", resp.ID))
	return &ChromaCollection{db: d, id: resp.ID, name: name}, nil
}

// Close releases idle connections.
func (d *ChromaDatabase) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// ChromaCollection is a handle to one server-side collection.
type ChromaCollection struct {
	db   *ChromaDatabase
	id   string
	name string
}

// Name implements Collection.
func (c *ChromaCollection) Name() string { return c.name }

// ID returns the server-assigned collection id.
func (c *ChromaCollection) ID() string { return c.id }

func (c *ChromaCollection) path(op string) string {
	return "/collections/" + url.PathEscape(c.id) + "/" + op
}

// Upsert implements Collection.
func (c *ChromaCollection) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	req := map[string]any{
		"ids":        []string{id},
		"embeddings": [][]float32{embedding},
		"metadatas":  []map[string]any{copyMetadata(metadata)},
	}
	if err := c.db.do(ctx, http.MethodPost, c.path("upsert"), req, nil); err != nil {
		return fmt.Errorf("failed to upsert %q: %w", id, err)
	}
	return nil
}

type chromaGetResponse struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
}

// Get implements Collection.
func (c *ChromaCollection) Get(ctx context.Context, id string) (*Record, error) {
	req := map[string]any{
		"ids":     []string{id},
		"include": []string{"embeddings", "metadatas"},
	}
	var resp chromaGetResponse
	if err := c.db.do(ctx, http.MethodPost, c.path("get"), req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", id, err)
	}
	for i, got := range resp.IDs {
		if got != id {
			continue
		}
		r := &Record{ID: got, Metadata: map[string]any{}}
		if i < len(resp.Embeddings) {
			r.Embedding = resp.Embeddings[i]
		}
		if i < len(resp.Metadatas) && resp.Metadatas[i] != nil {
			r.Metadata = resp.Metadatas[i]
		}
		return r, nil
	}
	return nil, fmt.Errorf("record %q: %w", id, ErrNotFound)
}

// Count implements Collection.
func (c *ChromaCollection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.do(ctx, http.MethodGet, c.path("count"), nil, &n); err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", c.name, err)
	}
	return n, nil
}

type chromaQueryResponse struct {
	IDs        [][]string         `json:"ids"`
	Distances  [][]float64        `json:"distances"`
	Embeddings [][][]float32      `json:"embeddings"`
	Metadatas  [][]map[string]any `json:"metadatas"`
}

// Query implements Collection.
func (c *ChromaCollection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        k,
		"include":          []string{"embeddings", "metadatas", "distances"},
	}
	var resp chromaQueryResponse
	if err := c.db.do(ctx, http.MethodPost, c.path("query"), req, &resp); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", c.name, err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}
	matches := make([]Match, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		m := Match{Record: Record{ID: id, Metadata: map[string]any{}}}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			m.Distance = resp.Distances[0][i]
		}
		if len(resp.Embeddings) > 0 && i < len(resp.Embeddings[0]) {
			m.Embedding = resp.Embeddings[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) && resp.Metadatas[0][i] != nil {
			m.Metadata = resp.Metadatas[0][i]
		}
		matches[i] = m
	}
	return matches, nil
}
