package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/models"
	"github.com/hyperjump/ingestor/internal/pipeline"
	"github.com/hyperjump/ingestor/internal/vector"
	"go.uber.org/zap"
)

// decodeOptional decodes a JSON body into v, accepting an empty body.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessRequest
	if err := decodeOptional(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	file := firstNonEmpty(req.File, s.config.Source.DocumentID)
	bucket := firstNonEmpty(req.Bucket, s.config.Source.Bucket)
	if file == "" || bucket == "" {
		s.respondError(w, http.StatusBadRequest, "file and bucket are required")
		return
	}
	s.logger.Debug("process request", zap.String("file", file), zap.String("bucket", bucket))

	res, err := s.deps.Pipeline.Run(r.Context(), pipeline.Request{DocumentID: file, Bucket: bucket})
	if err != nil {
		s.logger.Warn("process failed", zap.String("file", file), zap.Error(err))
		s.respondError(w, statusFor(err), pipeline.Reason(err))
		return
	}
	s.respondJSON(w, http.StatusOK, models.ProcessResponse{
		Message: "Processing complete",
		File:    res.DocumentID,
		Summary: res.Summary,
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batcher == nil {
		s.respondError(w, http.StatusNotImplemented, "batch processing not enabled")
		return
	}
	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	bucket := firstNonEmpty(req.Bucket, s.config.Source.Bucket)
	if bucket == "" {
		s.respondError(w, http.StatusBadRequest, "bucket is required")
		return
	}

	reqs := make([]pipeline.Request, len(req.Files))
	for i, f := range req.Files {
		reqs[i] = pipeline.Request{DocumentID: f, Bucket: bucket}
	}
	items := s.deps.Batcher.Run(r.Context(), reqs)

	resp := pipeline.NewBatchResponse(items)
	for i, item := range items {
		if item.Err != nil {
			s.logger.Warn("batch item failed", zap.String("file", item.Request.DocumentID), zap.Error(item.Err))
			resp.Results[i].Error = pipeline.Reason(item.Err)
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	vec, err := s.deps.Embedder.EmbedQuery(r.Context(), query.Text)
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	matches, err := s.deps.Collection.Query(r.Context(), vec, query.K)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := models.QueryResponse{Query: query.Text, Results: make([]models.QueryHit, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, models.QueryHit{ID: m.ID, Distance: m.Distance, Metadata: m.Metadata})
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Collection.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "record not found")
			return
		}
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.RecordResponse{ID: rec.ID, Embedding: rec.Embedding, Metadata: rec.Metadata})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Database.Heartbeat(r.Context()); err != nil {
		s.logger.Warn("health: heartbeat failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.deps.Collection.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := models.StatusResponse{
		Status:          "ok",
		Backend:         s.config.Vector.Backend,
		Collection:      s.deps.Collection.Name(),
		Records:         count,
		CompletionModel: s.config.Completion.Model,
		EmbeddingModel:  s.config.Embedding.Model,
		Dimensions:      s.config.Embedding.Dimensions,
	}
	if s.config.Vector.Backend == "sqlite" {
		if n, err := docstore.DiskUsageBytes(s.config.Vector.Path); err == nil {
			resp.StorageBytes = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.deps.Watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.deps.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if strings.TrimSpace(path) == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.deps.Watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.deps.Watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
