// Package chromatest provides an in-process fake of the Chroma v1 REST API for tests.
package chromatest

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Record is a stored entry.
type Record struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
}

type collection struct {
	id      string
	name    string
	records map[string]Record
}

// Server is a fake Chroma server. When Token is set, requests must carry it as a bearer token.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	token       string
	collections map[string]*collection
	upserts     int
	failUpserts bool
	down        bool
}

// NewServer starts a fake that accepts requests bearing token, or any request if token is empty.
func NewServer(token string) *Server {
	s := &Server{token: token, collections: make(map[string]*collection)}
	r := chi.NewRouter()
	r.Use(s.authorize)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/heartbeat", s.heartbeat)
		r.Post("/collections", s.createCollection)
		r.Post("/collections/{id}/upsert", s.upsert)
		r.Post("/collections/{id}/get", s.get)
		r.Get("/collections/{id}/count", s.count)
		r.Post("/collections/{id}/query", s.query)
	})
	s.Server = httptest.NewServer(r)
	return s
}

// SetToken changes the accepted bearer token.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetDown makes the heartbeat answer 503 while down is true.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetFailUpserts makes every upsert answer 500 while fail is true.
func (s *Server) SetFailUpserts(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpserts = fail
}

// Records returns a copy of the records in the named collection, sorted by id.
func (s *Server) Records(name string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byName(name)
	if c == nil {
		return nil
	}
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upserts returns how many upsert requests succeeded.
func (s *Server) Upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *Server) byName(name string) *collection {
	for _, c := range s.collections {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"nanosecond heartbeat": 1700000000000000000})
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		GetOrCreate bool   `json:"get_or_create"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid collection request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byName(req.Name)
	if c != nil && !req.GetOrCreate {
		writeError(w, http.StatusConflict, "collection exists")
		return
	}
	if c == nil {
		c = &collection{id: fmt.Sprintf("coll-%d", len(s.collections)+1), name: req.Name, records: make(map[string]Record)}
		s.collections[c.id] = c
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": c.id, "name": c.name, "metadata": nil})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *collection {
	c := s.collections[chi.URLParam(r, "id")]
	if c == nil {
		writeError(w, http.StatusNotFound, "collection not found")
	}
	return c
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs        []string         `json:"ids"`
		Embeddings [][]float32      `json:"embeddings"`
		Metadatas  []map[string]any `json:"metadatas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) != len(req.Embeddings) {
		writeError(w, http.StatusBadRequest, "invalid upsert request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts {
		writeError(w, http.StatusInternalServerError, "upsert failed")
		return
	}
	c := s.lookup(w, r)
	if c == nil {
		return
	}
	for i, id := range req.IDs {
		rec := Record{ID: id, Embedding: req.Embeddings[i], Metadata: map[string]any{}}
		if i < len(req.Metadatas) && req.Metadatas[i] != nil {
			rec.Metadata = req.Metadatas[i]
		}
		c.records[id] = rec
	}
	s.upserts++
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid get request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.lookup(w, r)
	if c == nil {
		return
	}
	resp := struct {
		IDs        []string         `json:"ids"`
		Embeddings [][]float32      `json:"embeddings"`
		Metadatas  []map[string]any `json:"metadatas"`
	}{IDs: []string{}, Embeddings: [][]float32{}, Metadatas: []map[string]any{}}
	for _, id := range req.IDs {
		if rec, ok := c.records[id]; ok {
			resp.IDs = append(resp.IDs, rec.ID)
			resp.Embeddings = append(resp.Embeddings, rec.Embedding)
			resp.Metadatas = append(resp.Metadatas, rec.Metadata)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.lookup(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, len(c.records))
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QueryEmbeddings [][]float32 `json:"query_embeddings"`
		NResults        int         `json:"n_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.QueryEmbeddings) != 1 {
		writeError(w, http.StatusBadRequest, "invalid query request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.lookup(w, r)
	if c == nil {
		return
	}
	type hit struct {
		rec  Record
		dist float64
	}
	var hits []hit
	for _, rec := range c.records {
		hits = append(hits, hit{rec: rec, dist: cosineDistance(req.QueryEmbeddings[0], rec.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist == hits[j].dist {
			return strings.Compare(hits[i].rec.ID, hits[j].rec.ID) < 0
		}
		return hits[i].dist < hits[j].dist
	})
	if req.NResults < len(hits) {
		hits = hits[:req.NResults]
	}
	ids, dists := []string{}, []float64{}
	embs, metas := [][]float32{}, []map[string]any{}
	for _, h := range hits {
		ids = append(ids, h.rec.ID)
		dists = append(dists, h.dist)
		embs = append(embs, h.rec.Embedding)
		metas = append(metas, h.rec.Metadata)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ids":        [][]string{ids},
		"distances":  [][]float64{dists},
		"embeddings": [][][]float32{embs},
		"metadatas":  [][]map[string]any{metas},
	})
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
