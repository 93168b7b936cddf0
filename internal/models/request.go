package models

import (
	"fmt"
	"strings"
)

// ProcessRequest names a document to ingest. Empty fields fall back to configured defaults.
type ProcessRequest struct {
	File   string `json:"file,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// BatchRequest names several documents in one bucket.
type BatchRequest struct {
	Files  []string `json:"files"`
	Bucket string   `json:"bucket,omitempty"`
}

// Validate rejects empty batches and blank file names.
func (r *BatchRequest) Validate() error {
	if len(r.Files) == 0 {
		return fmt.Errorf("files cannot be empty")
	}
	for i, f := range r.Files {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("files[%d] is empty", i)
		}
	}
	return nil
}

// QueryRequest asks for the records nearest to a text.
type QueryRequest struct {
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`
}

// Validate ensures the query has text and normalizes K to [1, 100], defaulting to 5.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("query text cannot be empty")
	}
	if q.K <= 0 {
		q.K = 5
	}
	if q.K > 100 {
		q.K = 100
	}
	return nil
}
