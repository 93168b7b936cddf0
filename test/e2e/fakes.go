// Package e2e runs the ingestion service end to end against in-process fakes of Cloud Storage,
// an OpenAI-compatible model API, and Chroma.
package e2e

import (
	"encoding/json"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
)

// FakeGCS serves objects through the Cloud Storage JSON API download endpoint.
type FakeGCS struct {
	*httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
}

// NewFakeGCS starts an empty fake. Point the client at Endpoint().
func NewFakeGCS() *FakeGCS {
	f := &FakeGCS{objects: make(map[string][]byte)}
	r := chi.NewRouter()
	r.Get("/storage/v1/b/{bucket}/o/*", f.download)
	f.Server = httptest.NewServer(r)
	return f
}

// Endpoint is the API base URL for option.WithEndpoint.
func (f *FakeGCS) Endpoint() string { return f.URL + "/storage/v1/" }

// Put stores an object.
func (f *FakeGCS) Put(bucket, name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+name] = data
}

func (f *FakeGCS) download(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("alt") != "media" {
		http.Error(w, "metadata not supported", http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "bucket") + "/" + chi.URLParam(r, "*")
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"No such object: `+key+`"}}`)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

// bagDims is the length of generated embeddings.
const bagDims = 64

// EmbeddingCall records one embeddings request.
type EmbeddingCall struct {
	Model    string
	Input    string
	TaskType string
}

// FakeOpenAI serves /chat/completions and /embeddings under /v1.
type FakeOpenAI struct {
	*httptest.Server

	mu         sync.Mutex
	summary    string
	vector     []float32
	failChat   bool
	failEmbed  bool
	prompts    []string
	embeddings []EmbeddingCall
}

// NewFakeOpenAI answers every chat request with summary. Embeddings are vector when it is
// non-nil, otherwise a bag-of-words hash of the input.
func NewFakeOpenAI(summary string, vector []float32) *FakeOpenAI {
	f := &FakeOpenAI{summary: summary, vector: vector}
	r := chi.NewRouter()
	r.Post("/v1/chat/completions", f.chat)
	r.Post("/v1/embeddings", f.embed)
	f.Server = httptest.NewServer(r)
	return f
}

// BaseURL is the API base URL.
func (f *FakeOpenAI) BaseURL() string { return f.URL + "/v1/" }

// SetFailChat makes chat requests answer 500.
func (f *FakeOpenAI) SetFailChat(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failChat = fail
}

// SetFailEmbeddings makes embedding requests answer 500.
func (f *FakeOpenAI) SetFailEmbeddings(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failEmbed = fail
}

// Prompts returns the user messages received so far.
func (f *FakeOpenAI) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// EmbeddingCalls returns the embedding requests received so far.
func (f *FakeOpenAI) EmbeddingCalls() []EmbeddingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EmbeddingCall(nil), f.embeddings...)
}

func (f *FakeOpenAI) chat(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.prompts = append(f.prompts, gjson.GetBytes(body, "messages.0.content").String())
	fail, summary := f.failChat, f.summary
	f.mu.Unlock()
	if fail {
		writeAPIError(w, http.StatusInternalServerError, "model overloaded")
		return
	}
	writeJSON(w, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   gjson.GetBytes(body, "model").String(),
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": summary},
			"finish_reason": "stop",
		}},
	})
}

func (f *FakeOpenAI) embed(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	call := EmbeddingCall{
		Model:    gjson.GetBytes(body, "model").String(),
		Input:    gjson.GetBytes(body, "input").String(),
		TaskType: gjson.GetBytes(body, "task_type").String(),
	}
	f.mu.Lock()
	f.embeddings = append(f.embeddings, call)
	fail, vec := f.failEmbed, f.vector
	f.mu.Unlock()
	if fail {
		writeAPIError(w, http.StatusInternalServerError, "embedding backend unavailable")
		return
	}
	if vec == nil {
		vec = BagOfWords(call.Input, bagDims)
	}
	writeJSON(w, map[string]any{
		"object": "list",
		"model":  call.Model,
		"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

// BagOfWords hashes the lower-cased words of text into a unit vector of dims values.
func BagOfWords(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg, "type": "server_error"}})
}
