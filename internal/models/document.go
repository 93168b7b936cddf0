// Package models defines the data exchanged between the ingestion pipeline and its callers.
package models

// Metadata keys written with every collection record.
const (
	MetadataFileName = "file_name"
	MetadataContent  = "content"
)

// DefaultContentPreview is the number of code points of extracted text stored as record content.
const DefaultContentPreview = 500

// Document is one fetched object and the text extracted from it. It lives for a single run.
type Document struct {
	ID      string `json:"id"`
	Bucket  string `json:"bucket"`
	Content []byte `json:"-"`
	Text    string `json:"text,omitempty"`
}
