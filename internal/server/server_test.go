package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/playerpulse/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(statuses ...store.ServerStatus) *store.MemoryStore {
	st := store.NewMemoryStore(testLogger())
	for _, s := range statuses {
		st.Update(s)
	}
	return st
}

// --- Health ---

func TestHandleHealth(t *testing.T) {
	srv := NewServer(newTestStore(), 0, testLogger())
	start := srv.started
	srv.now = func() time.Time { return start.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body Health
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Message != "OK" {
		t.Errorf("message = %q, want OK", body.Message)
	}
	if body.Uptime != 90 {
		t.Errorf("uptime = %v, want 90", body.Uptime)
	}
	if body.Timestamp != start.Add(90*time.Second).UnixMilli() {
		t.Errorf("timestamp = %d", body.Timestamp)
	}
}

func TestHandleHealth_MethodNotAllowed(t *testing.T) {
	srv := NewServer(newTestStore(), 0, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// --- Status ---

func TestHandleStatus(t *testing.T) {
	st := newTestStore(
		store.ServerStatus{Server: "b.com", Online: 0, Players: []store.Player{}},
		store.ServerStatus{Server: "a.com", Online: 1, Players: []store.Player{{UUID: "u1", Name: "Steve"}}},
	)
	srv := NewServer(st, 0, testLogger())

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var got []store.ServerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0].Server != "a.com" || got[1].Server != "b.com" {
		t.Errorf("statuses = %+v, want a.com then b.com", got)
	}
	if got[0].Players[0].Name != "Steve" {
		t.Errorf("players = %+v", got[0].Players)
	}
}

// --- SSE ---

func TestHandleSSE_BasicFlow(t *testing.T) {
	st := newTestStore(
		store.ServerStatus{Server: "a.com", Online: 2},
		store.ServerStatus{Server: "b.com", Online: 0},
	)
	srv := NewServer(st, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 initial snapshot", len(events))
	}
	if len(events[0]) != 2 {
		t.Errorf("initial snapshot = %+v, want both servers", events[0])
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	st := newTestStore()
	srv := NewServer(st, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	st.Update(store.ServerStatus{Server: "new.com", Online: 3})
	st.Update(store.ServerStatus{Server: "new.com", Online: 3}) // no change, no event

	// give time for update to be written
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("events = %d, want empty snapshot plus one update", len(events))
	}
	if len(events[1]) != 1 || events[1][0].Server != "new.com" {
		t.Errorf("update = %+v", events[1])
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	srv := NewServer(newTestStore(), 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// simulate client disconnect
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	// allow existing goroutines to settle
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	srv := NewServer(newTestStore(), 0, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(ctx)
			srv.handleSSE(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	// allow cleanup
	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	srv := NewServer(newTestStore(store.ServerStatus{Server: "a.com"}), 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)

			// use Add's return value to ensure only one goroutine closes the channel
			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(httptest.NewRecorder(), req)
		}()
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	// give handlers time to subscribe
	time.Sleep(100 * time.Millisecond)
	serverCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := NewServer(newTestStore(), 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)

	// use a writer that doesn't support flushing
	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

// nonFlushWriter is a ResponseWriter that doesn't implement http.Flusher.
type nonFlushWriter struct {
	header     http.Header
	statusCode int
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	srv := NewServer(newTestStore(), 0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.handleSSE(rec, req)

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}
	for header, want := range expectedHeaders {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}
}

// TestHandleSSE_ServerShutdownIntegration tests that SSE handlers exit cleanly
// when the server is shut down, using a real HTTP connection.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	srv := NewServer(newTestStore(store.ServerStatus{Server: "a.com", Online: 1}), 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())

	// derive request context from server context (simulates BaseContext)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.handleSSE(w, r.WithContext(serverCtx))
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	connDone := make(chan error, 1)
	go func() {
		resp, err := ts.Client().Get(ts.URL)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		// read until connection closes
		buf := make([]byte, 1024)
		for {
			if _, err := resp.Body.Read(buf); err != nil {
				connDone <- nil
				return
			}
		}
	}()

	// give connection time to establish
	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

// --- Helper to read SSE events from response ---

func parseSSEEvents(body string) [][]store.ServerStatus {
	var events [][]store.ServerStatus
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			var snapshot []store.ServerStatus
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snapshot); err == nil {
				events = append(events, snapshot)
			}
		}
	}
	return events
}

// --- Server Start Tests ---

func TestStart_ServesHealth(t *testing.T) {
	srv := NewServer(newTestStore(), 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	port := srv.Addr().(*net.TCPAddr).Port
	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	// occupy a port
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	srv := NewServer(newTestStore(), port, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(newTestStore(), -1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}
