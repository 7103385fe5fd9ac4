// SPDX-License-Identifier: MIT

package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/sd-tools/sd-watcher-afk/internal/event"
)

// MockServer is a configurable activity-watch server stub for testing.
type MockServer struct {
	*httptest.Server
	mu         sync.RWMutex
	buckets    map[string]Bucket
	heartbeats map[string][]RecordedHeartbeat
	failures   int // remaining requests to fail with 500
	hardDown   bool
}

// RecordedHeartbeat captures one heartbeat request as the server saw it.
type RecordedHeartbeat struct {
	Event     event.Event
	Pulsetime float64
}

// NewMockServer starts a stub server with no buckets.
func NewMockServer() *MockServer {
	mock := &MockServer{
		buckets:    make(map[string]Bucket),
		heartbeats: make(map[string][]RecordedHeartbeat),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/0/info", mock.handleInfo)
	mux.HandleFunc("/api/0/buckets/", mock.handleBuckets)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// FailNext makes the next n requests answer 500.
func (m *MockServer) FailNext(n int) {
	m.mu.Lock()
	m.failures = n
	m.mu.Unlock()
}

// SetDown makes every request answer 503 until called with false.
func (m *MockServer) SetDown(down bool) {
	m.mu.Lock()
	m.hardDown = down
	m.mu.Unlock()
}

// Buckets returns the registered buckets.
func (m *MockServer) Buckets() map[string]Bucket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Bucket, len(m.buckets))
	for k, v := range m.buckets {
		out[k] = v
	}
	return out
}

// Heartbeats returns the heartbeats recorded for a bucket, in arrival order.
func (m *MockServer) Heartbeats(bucketID string) []RecordedHeartbeat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedHeartbeat(nil), m.heartbeats[bucketID]...)
}

func (m *MockServer) unhealthy(w http.ResponseWriter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hardDown {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return true
	}
	if m.failures > 0 {
		m.failures--
		http.Error(w, "transient", http.StatusInternalServerError)
		return true
	}
	return false
}

func (m *MockServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	if m.unhealthy(w) {
		return
	}
	writeJSON(w, Info{Hostname: "mockhost", Version: "v0.13.0-mock", Testing: true})
}

func (m *MockServer) handleBuckets(w http.ResponseWriter, r *http.Request) {
	if m.unhealthy(w) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/0/buckets/")
	bucketID, sub, _ := strings.Cut(rest, "/")
	if bucketID == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodPost:
		m.createBucket(w, r, bucketID)
	case sub == "heartbeat" && r.Method == http.MethodPost:
		m.heartbeat(w, r, bucketID)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockServer) createBucket(w http.ResponseWriter, r *http.Request, bucketID string) {
	var b Bucket
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.buckets[bucketID]; exists {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	m.buckets[bucketID] = b
	w.WriteHeader(http.StatusOK)
}

func (m *MockServer) heartbeat(w http.ResponseWriter, r *http.Request, bucketID string) {
	m.mu.Lock()
	_, exists := m.buckets[bucketID]
	m.mu.Unlock()
	if !exists {
		http.NotFound(w, r)
		return
	}

	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pulsetime, _ := strconv.ParseFloat(r.URL.Query().Get("pulsetime"), 64)

	m.mu.Lock()
	m.heartbeats[bucketID] = append(m.heartbeats[bucketID], RecordedHeartbeat{Event: ev, Pulsetime: pulsetime})
	m.mu.Unlock()

	writeJSON(w, ev)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
