// Package auth supplies renewable bearer credentials for outbound service calls.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrUnauthorized indicates the remote service rejected the credential.
	ErrUnauthorized = errors.New("auth: credential rejected")

	// ErrCredential indicates a credential could not be obtained or refreshed.
	ErrCredential = errors.New("auth: credential unavailable")
)

// Modes accepted by NewSource.
const (
	ModeMetadata = "metadata"
	ModeStatic   = "static"
	ModeNone     = "none"
)

// Provider hands out cached tokens and refreshes them shortly before expiry.
// Invalidate forces the next Token call to fetch a new one.
type Provider struct {
	mu          sync.Mutex
	base        oauth2.TokenSource
	cached      oauth2.TokenSource
	earlyExpiry time.Duration
	logger      *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithEarlyExpiry sets how long before expiry a token is considered stale.
func WithEarlyExpiry(d time.Duration) Option {
	return func(p *Provider) { p.earlyExpiry = d }
}

// NewProvider wraps base. A nil base yields a provider that never authenticates.
func NewProvider(base oauth2.TokenSource, opts ...Option) *Provider {
	p := &Provider{base: base, earlyExpiry: time.Minute, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.reset()
	return p
}

func (p *Provider) reset() {
	if p.base == nil {
		p.cached = nil
		return
	}
	p.cached = oauth2.ReuseTokenSourceWithExpiry(nil, p.base, p.earlyExpiry)
}

// Enabled reports whether requests should carry a credential.
func (p *Provider) Enabled() bool {
	return p != nil && p.base != nil
}

// Token returns a valid token.
func (p *Provider) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	src := p.cached
	p.mu.Unlock()
	if src == nil {
		return nil, fmt.Errorf("%w: no credential source configured", ErrCredential)
	}
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to obtain token: %w", ErrCredential, err)
	}
	return tok, nil
}

// Invalidate drops the cached token.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Debug("invalidating cached credential")
	p.reset()
}

// Authorize sets the Authorization header on req.
func (p *Provider) Authorize(req *http.Request) error {
	if !p.Enabled() {
		return nil
	}
	tok, err := p.Token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}
