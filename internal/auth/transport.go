package auth

import (
	"net/http"
)

// Transport adds the provider's bearer token to every request. When the server answers
// 401 or 403 the cached token is invalidated and the request is retried once.
type Transport struct {
	Provider *Provider
	Base     http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.Provider.Enabled() {
		return t.base().RoundTrip(req)
	}

	resp, err := t.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	t.Provider.Invalidate()
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	_ = resp.Body.Close()
	return t.send(retry)
}

func (t *Transport) send(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if err := t.Provider.Authorize(r); err != nil {
		return nil, err
	}
	return t.base().RoundTrip(r)
}

// NewHTTPClient returns a client whose requests are authorized by p.
func NewHTTPClient(p *Provider, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Provider: p, Base: base}}
}
