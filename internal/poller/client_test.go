package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"sync/atomic"
	"testing"
	"time"
)

const sampleStatus = `{
  "online": true,
  "hostname": "mc.example.com",
  "version": "1.20.4",
  "players": {
    "online": 3,
    "max": 20,
    "list": [
      {"name": "John", "uuid": "6f9ca9ab-8f38-4cd8-a858-f8f2b950598a"},
      {"name": "Adam", "uuid": "5a755c70-c39a-4811-a259-4e5aca7bdea7"},
      {"name": "Beth", "uuid": "3af98ee8-16a4-4edb-9261-feb924a47d90"}
    ]
  }
}`

func TestClient_FetchStatus(t *testing.T) {
	var gotPath, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleStatus))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/3/", 5*time.Second, 0)
	defer client.Close()

	resp, err := client.FetchStatus(context.Background(), "mc.example.com")
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}

	if gotPath != "/3/mc.example.com" {
		t.Errorf("request path = %q, want %q", gotPath, "/3/mc.example.com")
	}
	if gotUA == "" {
		t.Error("User-Agent header not set")
	}
	if resp.Players.Online != 3 {
		t.Errorf("Players.Online = %d, want 3", resp.Players.Online)
	}
	if len(resp.Players.List) != 3 || resp.Players.List[0].Name != "John" {
		t.Errorf("Players.List = %+v", resp.Players.List)
	}
}

func TestClient_FetchStatus_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 0)
	if _, err := client.FetchStatus(context.Background(), "a.com"); err == nil {
		t.Fatal("FetchStatus() error = nil, want error for HTTP 429")
	}
}

func TestClient_FetchStatus_MalformedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"online": false}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 0)
	_, err := client.FetchStatus(context.Background(), "a.com")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("FetchStatus() error = %v, want ErrInvalidStatus", err)
	}
}

func TestClient_FetchStatus_RateLimited(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleStatus))
	}))
	defer server.Close()

	// one request per 10s: the second call must wait and hit the deadline
	client := NewClient(server.URL, time.Second, 0.1)

	if _, err := client.FetchStatus(context.Background(), "a.com"); err != nil {
		t.Fatalf("first FetchStatus() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.FetchStatus(ctx, "a.com"); err == nil {
		t.Fatal("second FetchStatus() error = nil, want rate limiter error")
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, 50*time.Millisecond, 0)
	resp := client.Fetch(context.Background(), server.URL)
	if resp.Error == nil {
		t.Fatal("Fetch() Error = nil, want timeout error")
	}
}

// TestClient_ConnectionReuse verifies that sequential requests to the status
// API reuse pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleStatus))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, server.URL)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

func TestClient_Close_NilClient(t *testing.T) {
	var client *Client

	// should not panic on nil receiver
	client.Close()
}
