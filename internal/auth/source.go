package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"golang.org/x/oauth2"
)

// SourceConfig selects and configures a token source.
type SourceConfig struct {
	Mode     string
	Audience string
	Token    string
	Timeout  time.Duration
}

// NewSource builds the token source for cfg.Mode. ModeNone returns nil.
func NewSource(cfg SourceConfig) (oauth2.TokenSource, error) {
	switch cfg.Mode {
	case ModeMetadata:
		if cfg.Audience == "" {
			return nil, fmt.Errorf("metadata credentials require an audience")
		}
		return NewIdentityTokenSource(cfg.Audience, cfg.Timeout), nil
	case ModeStatic:
		if cfg.Token == "" {
			return nil, fmt.Errorf("static credentials require a token")
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}), nil
	case ModeNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
}

// identityTokenSource fetches OIDC identity tokens for an audience from the instance metadata server.
type identityTokenSource struct {
	audience string
	timeout  time.Duration
}

// NewIdentityTokenSource returns a source of identity tokens minted by the metadata server.
func NewIdentityTokenSource(audience string, timeout time.Duration) oauth2.TokenSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &identityTokenSource{audience: audience, timeout: timeout}
}

func (s *identityTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	suffix := "instance/service-accounts/default/identity?audience=" + url.QueryEscape(s.audience) + "&format=full"
	raw, err := metadata.GetWithContext(ctx, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch identity token: %w", err)
	}
	raw = strings.TrimSpace(raw)
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if exp, ok := jwtExpiry(raw); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

// jwtExpiry reads the exp claim of a JWT without verifying it.
func jwtExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}
