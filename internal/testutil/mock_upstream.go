// Package testutil provides testing utilities for the image redirect service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockImageResponse defines the behavior of the mock image API for one device.
type MockImageResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockUpstream is a configurable mock image API.
// Requests are expected at /{device}/?json.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	perDevice    map[string]int
	lastHeader   http.Header
	lastQuery    string
}

// NewMockUpstream creates and starts a mock image API.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers:  make(map[string]http.HandlerFunc),
		perDevice: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := strings.Trim(r.URL.Path, "/")

		mock.mu.Lock()
		mock.requestCount++
		mock.perDevice[device]++
		mock.lastHeader = r.Header.Clone()
		mock.lastQuery = r.URL.RawQuery
		handler, exists := mock.handlers[device]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r, device)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.perDevice = make(map[string]int)
	m.lastHeader = nil
	m.lastQuery = ""
}

// SetHandler sets a custom handler for a device.
func (m *MockUpstream) SetHandler(device string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[device] = handler
}

// SetResponse configures a fixed response for a device.
func (m *MockUpstream) SetResponse(device string, resp MockImageResponse) {
	m.SetHandler(device, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetImage configures a successful record pointing at imageURL.
func (m *MockUpstream) SetImage(device, imageURL string) {
	m.SetResponse(device, NewImageResponse(imageURL, 1920, 1080))
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetDeviceCount returns the number of requests made for device.
func (m *MockUpstream) GetDeviceCount(device string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perDevice[device]
}

// LastHeader returns the headers of the most recent request.
func (m *MockUpstream) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastQuery returns the raw query of the most recent request.
func (m *MockUpstream) LastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// defaultHandler answers every device with a deterministic image URL.
func (m *MockUpstream) defaultHandler(w http.ResponseWriter, _ *http.Request, device string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ImageBody(200, fmt.Sprintf("https://img.example/%s/default.jpg", device), 1920, 1080)))
}

// ImageBody renders an image API envelope.
func ImageBody(code int, imageURL string, width, height int) string {
	b, _ := json.Marshal(map[string]any{
		"code":   code,
		"url":    imageURL,
		"width":  width,
		"height": height,
	})
	return string(b)
}

// NewImageResponse creates a successful image record response.
func NewImageResponse(imageURL string, width, height int) MockImageResponse {
	return MockImageResponse{
		StatusCode: http.StatusOK,
		Body:       ImageBody(200, imageURL, width, height),
	}
}

// NewLogicalErrorResponse creates a parseable envelope with a failure code.
func NewLogicalErrorResponse(code int) MockImageResponse {
	return MockImageResponse{
		StatusCode: http.StatusOK,
		Body:       ImageBody(code, "", 0, 0),
	}
}

// NewMalformedResponse creates a response that is not the expected JSON envelope.
func NewMalformedResponse() MockImageResponse {
	return MockImageResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "<html><body>502 Bad Gateway</body></html>",
	}
}

// ClosedURL returns the URL of a server that has already been shut down,
// so that requests to it fail at the transport level.
func ClosedURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}
