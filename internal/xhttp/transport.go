package xhttp

import (
	"fmt"
	"net/http"

	"github.com/wakti/whoopsync/internal/version"
)

type syncTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*syncTransport)(nil)

func (t *syncTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "whoopsync/"+version.Get())
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform round trip: %w", err)
	}
	return resp, nil
}

// NewTransport returns an http.RoundTripper with standard whoopsync headers.
func NewTransport() http.RoundTripper {
	return &syncTransport{base: http.DefaultTransport}
}
