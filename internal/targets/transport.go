package targets

import (
	"net/http"
)

// Transport authenticates requests to a target platform with a pre-shared key.
type Transport struct {
	PSK string
}

func (t Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-PSK", t.PSK)
	req.Header.Set("Accept", "application/json")
	return http.DefaultTransport.RoundTrip(req)
}
