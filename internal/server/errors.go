package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/pipeline"
)

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	var (
		fetchErr   *pipeline.FetchError
		extractErr *pipeline.ExtractError
		embedErr   *pipeline.EmbedError
		storeErr   *pipeline.StoreError
		authErr    *pipeline.AuthError
	)
	switch {
	case errors.Is(err, docstore.ErrInvalidBucket):
		return http.StatusBadRequest
	case errors.As(err, &fetchErr) && fetchErr.NotFound:
		return http.StatusNotFound
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &authErr), errors.As(err, &embedErr), errors.As(err, &storeErr), errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
