package httpx

import (
	"net/http"
	"net/http/httptest"
)

// TestServer runs a Server's handler over httptest so end-to-end tests and
// the ForumClient can talk to it over a real socket.
type TestServer struct{ *httptest.Server }

// NewTestServer starts a TestServer from an http.Handler, typically
// Server.Handler().
func NewTestServer(handler http.Handler) *TestServer {
	return &TestServer{httptest.NewServer(handler)}
}

// BaseURL returns the server's base URL.
func (ts *TestServer) BaseURL() string {
	if ts == nil || ts.Server == nil {
		return ""
	}
	return ts.URL
}
