// Package testutil provides shared helpers for exercising the engine
// against a live HTTP endpoint in tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
)

// JSONRoute maps a path to the status code and document it serves.
type JSONRoute struct {
	Status int
	Body   interface{}
}

// StartJSONServer starts an httptest server that answers each configured
// path with its JSON document and 404s everything else. Returns the server
// and a cleanup function.
func StartJSONServer(routes map[string]JSONRoute) (*httptest.Server, func()) {
	mux := http.NewServeMux()
	for path, route := range routes {
		status := route.Status
		if status == 0 {
			status = http.StatusOK
		}
		body := route.Body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		})
	}
	server := httptest.NewServer(mux)
	return server, server.Close
}

// StartEchoServer starts an httptest server that reflects the request
// method, path and selected headers back as JSON. Useful for verifying
// pre-script request mutations actually reach the wire.
func StartEchoServer(headerNames ...string) (*httptest.Server, func()) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echo := map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}
		headers := map[string]string{}
		for _, name := range headerNames {
			headers[name] = r.Header.Get(name)
		}
		echo["headers"] = headers
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo)
	})
	server := httptest.NewServer(handler)
	return server, server.Close
}
