package notify

import (
	"net/http"
)

// Transport adds a bearer token to every webhook request.
type Transport struct {
	Token string
}

func (t Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	return http.DefaultTransport.RoundTrip(req)
}
