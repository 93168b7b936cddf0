package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/extract"
)

// ExtractError reports an unparseable document.
type ExtractError = extract.ExtractError

// FetchError reports a document that could not be read from the store.
type FetchError struct {
	Bucket   string
	Key      string
	NotFound bool
	Err      error
}

func (e *FetchError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("document %s/%s not found", e.Bucket, e.Key)
	}
	return fmt.Sprintf("fetch %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SummarizeError reports a failed summary. It never aborts a run.
type SummarizeError struct{ Err error }

func (e *SummarizeError) Error() string { return "summarize: " + e.Err.Error() }
func (e *SummarizeError) Unwrap() error { return e.Err }

// EmbedError reports a failed embedding.
type EmbedError struct{ Err error }

func (e *EmbedError) Error() string { return "embed: " + e.Err.Error() }
func (e *EmbedError) Unwrap() error { return e.Err }

// StoreError reports a failed write to the vector collection.
type StoreError struct{ Err error }

func (e *StoreError) Error() string { return "store: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// AuthError reports a credential that a downstream service rejected or that could not be obtained.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return "auth: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// StageError wraps the error that aborted a run with the state it aborted in.
type StageError struct {
	DocumentID string
	State      State
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest %q aborted while %s: %v", e.DocumentID, e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AbortState returns the state in which err aborted a run, if err came from Run.
func AbortState(err error) (State, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.State, true
	}
	return 0, false
}

// Reason returns a short description of why a run failed, without bucket or key names.
func Reason(err error) string {
	var (
		fetchErr   *FetchError
		extractErr *ExtractError
		embedErr   *EmbedError
		storeErr   *StoreError
		authErr    *AuthError
	)
	reason := "internal error"
	switch {
	case errors.Is(err, docstore.ErrInvalidBucket):
		reason = "invalid bucket"
	case errors.As(err, &authErr):
		reason = "credential rejected or unavailable"
	case errors.As(err, &fetchErr) && fetchErr.NotFound:
		reason = "document not found"
	case errors.As(err, &fetchErr):
		reason = "document could not be fetched"
	case errors.As(err, &extractErr) && extractErr.Format != "":
		reason = "document could not be parsed as " + strings.TrimPrefix(extractErr.Format, ".")
	case errors.As(err, &extractErr):
		reason = "document could not be parsed"
	case errors.As(err, &embedErr):
		reason = "embedding failed"
	case errors.As(err, &storeErr):
		reason = "storing the record failed"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason += " (deadline exceeded)"
	}
	if state, ok := AbortState(err); ok {
		return "aborted while " + state.String() + ": " + reason
	}
	return reason
}
