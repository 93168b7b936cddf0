package models

// ProcessResponse is returned when a document was stored. Summary is null when summarization failed.
type ProcessResponse struct {
	Message string  `json:"message"`
	File    string  `json:"file"`
	Summary *string `json:"gemini_summary"`
}

// ErrorResponse carries the reason a request failed.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BatchItem is the outcome for one document of a batch.
type BatchItem struct {
	File    string  `json:"file"`
	Stored  bool    `json:"stored"`
	Summary *string `json:"gemini_summary"`
	Error   string  `json:"error,omitempty"`
}

// BatchResponse lists results in request order.
type BatchResponse struct {
	Results   []BatchItem `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// QueryHit is one record near the query.
type QueryHit struct {
	ID       string         `json:"id"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResponse is the answer to a QueryRequest.
type QueryResponse struct {
	Query     string     `json:"query"`
	Results   []QueryHit `json:"results"`
	QueryTime int64      `json:"query_time_ms"`
}

// RecordResponse is a stored record.
type RecordResponse struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// StatusResponse describes the running service.
type StatusResponse struct {
	Status          string `json:"status"`
	Backend         string `json:"backend"`
	Collection      string `json:"collection"`
	Records         int    `json:"records"`
	CompletionModel string `json:"completion_model"`
	EmbeddingModel  string `json:"embedding_model"`
	Dimensions      int    `json:"dimensions,omitempty"`
	StorageBytes    int64  `json:"storage_bytes,omitempty"`
}
