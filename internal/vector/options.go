package vector

import (
	"net/http"

	"go.uber.org/zap"
)

// Option configures a Database.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
	apiPath    string
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop(), httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient sets the client used by remote backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithAPIPath overrides the REST prefix of remote backends.
func WithAPIPath(p string) Option {
	return func(o *options) { o.apiPath = p }
}
