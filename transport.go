package session

import "net/http"

// BearerTransport attaches the persisted credential to every outbound
// request. Because the Store is consulted per request, a Set or Clear takes
// effect on the next call without any per-call-site header handling.
type BearerTransport struct {
	Source Store
	Base   http.RoundTripper
}

var _ http.RoundTripper = (*BearerTransport)(nil)

func NewBearerTransport(source Store, base http.RoundTripper) *BearerTransport {
	return &BearerTransport{Source: source, Base: base}
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token, ok := t.Source.Get()
	if !ok || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not mutate the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
