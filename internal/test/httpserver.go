package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// NewHttpServerWithHandlers creates a new httptest.Server that serves one
// request with each handler, in order.
func NewHttpServerWithHandlers(t *testing.T, handlers []http.HandlerFunc) *httptest.Server {
	var lock sync.Mutex
	idx := 0
	t.Cleanup(func() {
		lock.Lock()
		defer lock.Unlock()
		if diff := len(handlers) - idx; diff != 0 {
			t.Errorf("too many configured handlers, remove %d handler(s)", diff)
		}
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		if len(handlers) < idx+1 {
			lock.Unlock()
			t.Errorf("unexpected request, add missing handler func: %v", r)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		handler := handlers[idx]
		idx += 1
		lock.Unlock()
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("writing response: %v", err)
	}
}
