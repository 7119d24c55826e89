package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
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

var dummyPlayers = []store.Player{
	{UUID: "6f9ca9ab-8f38-4cd8-a858-f8f2b950598a", Name: "John"},
	{UUID: "5a755c70-c39a-4811-a259-4e5aca7bdea7", Name: "Adam"},
	{UUID: "3af98ee8-16a4-4edb-9261-feb924a47d90", Name: "Beth"},
}

// fakeFetcher serves canned responses per server and counts calls.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*StatusResponse
	errs      map[string]error
	calls     atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*StatusResponse),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) set(server string, resp *StatusResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[server] = resp
	f.errs[server] = err
}

func (f *fakeFetcher) fetch(_ context.Context, server string) (*StatusResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[server]; err != nil {
		return nil, err
	}
	resp, ok := f.responses[server]
	if !ok {
		return nil, errors.New("unknown server")
	}
	return resp, nil
}

func statusWith(online int, players []store.Player) *StatusResponse {
	return &StatusResponse{Online: true, Players: StatusPlayers{Online: online, Max: 20, List: players}}
}

func TestStatusClient_GetPlayersList(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", statusWith(3, dummyPlayers), nil)
	client := NewStatusClient(f.fetch, 30*time.Second, testLogger())

	result := client.PlayersList(context.Background(), "example.com")
	if !result.Success || !result.Listed {
		t.Fatalf("PlayersList() = %+v, want success with roster", result)
	}
	if len(result.Players) != 3 || result.Players[2].Name != "Beth" {
		t.Errorf("Players = %+v", result.Players)
	}
}

func TestStatusClient_GetPlayersList_NoRoster(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", statusWith(2, nil), nil)
	client := NewStatusClient(f.fetch, 30*time.Second, testLogger())

	result := client.PlayersList(context.Background(), "example.com")
	if !result.Success {
		t.Fatal("PlayersList() Success = false, want true")
	}
	if result.Listed {
		t.Error("Listed = true, want false for document without roster")
	}
	if result.Players == nil || len(result.Players) != 0 {
		t.Errorf("Players = %#v, want empty non-nil slice", result.Players)
	}
}

func TestStatusClient_Unsuccessful(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", nil, errors.New("Error"))
	client := NewStatusClient(f.fetch, 30*time.Second, testLogger())

	if result := client.OnlinePlayers(context.Background(), "example.com"); result.Success {
		t.Errorf("OnlinePlayers() = %+v, want failure", result)
	}
	if result := client.PlayersList(context.Background(), "example.com"); result.Success {
		t.Errorf("PlayersList() = %+v, want failure", result)
	}
}

func TestStatusClient_GetNumberOfOnlinePlayers(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", statusWith(3, dummyPlayers), nil)
	client := NewStatusClient(f.fetch, 30*time.Second, testLogger())

	result := client.OnlinePlayers(context.Background(), "example.com")
	if result != (OnlineResult{Success: true, Online: 3}) {
		t.Errorf("OnlinePlayers() = %+v, want {true 3}", result)
	}
}

func TestStatusClient_ProjectionsShareOneFetch(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", statusWith(3, dummyPlayers), nil)
	client := NewStatusClient(f.fetch, 30*time.Second, testLogger())

	client.OnlinePlayers(context.Background(), "example.com")
	client.PlayersList(context.Background(), "example.com")

	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
}

func TestStatusClient_InvalidDocumentNotCached(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", statusWith(-1, nil), nil)
	client := NewStatusClient(f.fetch, time.Hour, testLogger())

	if result := client.OnlinePlayers(context.Background(), "example.com"); result.Success {
		t.Fatalf("OnlinePlayers() = %+v, want failure for invalid document", result)
	}

	// a later valid document is fetched, proving nothing was cached
	f.set("example.com", statusWith(1, nil), nil)
	if result := client.OnlinePlayers(context.Background(), "example.com"); !result.Success || result.Online != 1 {
		t.Errorf("OnlinePlayers() = %+v, want {true 1}", result)
	}
	if f.calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", f.calls.Load())
	}
}

func TestStatusClient_StaleOnError(t *testing.T) {
	f := newFakeFetcher()
	f.set("example.com", statusWith(3, dummyPlayers), nil)
	client := NewStatusClient(f.fetch, time.Second, testLogger())

	now := time.Now()
	client.now = func() time.Time { return now }
	client.OnlinePlayers(context.Background(), "example.com")

	f.set("example.com", nil, errors.New("network down"))
	now = now.Add(time.Minute)

	result := client.OnlinePlayers(context.Background(), "example.com")
	if !result.Success || result.Online != 3 {
		t.Errorf("OnlinePlayers() = %+v, want stale {true 3}", result)
	}
}

func TestStatusClient_FetcherPanicRecovered(t *testing.T) {
	panicking := func(context.Context, string) (*StatusResponse, error) {
		panic("boom")
	}
	client := NewStatusClient(panicking, time.Second, testLogger())

	if result := client.OnlinePlayers(context.Background(), "example.com"); result.Success {
		t.Errorf("OnlinePlayers() = %+v, want failure after panic", result)
	}
}

func TestStatusClient_RosterIsCopied(t *testing.T) {
	f := newFakeFetcher()
	players := append([]store.Player(nil), dummyPlayers...)
	f.set("example.com", statusWith(3, players), nil)
	client := NewStatusClient(f.fetch, time.Hour, testLogger())

	first := client.PlayersList(context.Background(), "example.com")
	first.Players[0].Name = "changed"

	second := client.PlayersList(context.Background(), "example.com")
	if second.Players[0].Name != "John" {
		t.Errorf("cached roster was mutated: %+v", second.Players[0])
	}
}

func TestStatusClient_OfflineAnswerReplacesCachedOnline(t *testing.T) {
	online := `{"online": true, "players": {"online": 3, "max": 20, "list": [
		{"name": "John", "uuid": "6f9ca9ab-8f38-4cd8-a858-f8f2b950598a"},
		{"name": "Adam", "uuid": "5a755c70-c39a-4811-a259-4e5aca7bdea7"},
		{"name": "Beth", "uuid": "3af98ee8-16a4-4edb-9261-feb924a47d90"}]}}`
	offline := `{"online": false, "ip": "", "port": 25565, "hostname": "example.com"}`

	var mu sync.Mutex
	body := online
	fetch := func(_ context.Context, _ string) (*StatusResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		return ParseStatus([]byte(body))
	}
	client := NewStatusClient(fetch, 0, testLogger())
	ctx := context.Background()

	if result := client.OnlinePlayers(ctx, "example.com"); result != (OnlineResult{Success: true, Online: 3}) {
		t.Fatalf("OnlinePlayers() = %+v, want {true 3}", result)
	}

	mu.Lock()
	body = offline
	mu.Unlock()

	for i := 0; i < 3; i++ {
		if result := client.OnlinePlayers(ctx, "example.com"); result != (OnlineResult{Success: true, Online: 0}) {
			t.Fatalf("tick %d: OnlinePlayers() = %+v, want {true 0}", i, result)
		}
	}
	players := client.PlayersList(ctx, "example.com")
	if !players.Success || players.Listed || len(players.Players) != 0 {
		t.Errorf("PlayersList() = %+v, want success with no roster", players)
	}
}
