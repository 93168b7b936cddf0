// Package docstore reads raw documents from a blob store addressed by bucket and key.
package docstore

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotFound indicates the bucket or object does not exist.
	ErrNotFound = errors.New("docstore: object not found")

	// ErrInvalidBucket indicates a bucket name the store refuses to address.
	ErrInvalidBucket = errors.New("docstore: invalid bucket")

	// ErrUnauthorized indicates the store rejected the credentials.
	ErrUnauthorized = errors.New("docstore: unauthorized")
)

// DocumentStore fetches whole objects. Any error other than ErrNotFound is treated as transient.
type DocumentStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// IsNotFound reports whether err means the object is missing.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return false
}

// IsUnauthorized reports whether err means the credentials were rejected.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
	}
	return false
}
