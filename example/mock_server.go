package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mockPlayers is the pool players join from.
var mockPlayers = []struct{ UUID, Name string }{
	{"069a79f4-44e9-4726-a5be-fca90e38aaf5", "Notch"},
	{"853c80ef-3c37-49fd-aa49-938b674adae6", "jeb_"},
	{"f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", "Dinnerbone"},
	{"61699b2e-d327-4a01-9f1e-0ea8c3f06bc6", "Grumm"},
}

// mockState tracks the online players and next change time for one server.
type mockState struct {
	online       []int
	nextChangeAt time.Time
}

// StartMockStatusServer runs a status API shaped like mcsrvstat.us v3.
// GET /{address} returns that server's roster; each server gains or loses a
// player every 20-60 seconds.
// Call this in a goroutine before starting PlayerPulse.
func StartMockStatusServer(addr string) {
	var (
		states = make(map[string]*mockState)
		mu     sync.Mutex
	)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		server := strings.TrimPrefix(r.URL.Path, "/")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		state, exists := states[server]
		if !exists {
			state = &mockState{nextChangeAt: time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)}
			states[server] = state
		}

		// someone joins or leaves when scheduled time is reached
		if time.Now().After(state.nextChangeAt) {
			state.online = toggleRandomPlayer(state.online)
			state.nextChangeAt = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			slog.Info("roster change", "server", server, "online", len(state.online))
		}

		list := make([]map[string]string, 0, len(state.online))
		for _, i := range state.online {
			list = append(list, map[string]string{"uuid": mockPlayers[i].UUID, "name": mockPlayers[i].Name})
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"online":   true,
			"hostname": server,
			"players": map[string]any{
				"online": len(list),
				"max":    20,
				"list":   list,
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

// toggleRandomPlayer adds a random offline player or removes an online one.
func toggleRandomPlayer(online []int) []int {
	pick := rand.Intn(len(mockPlayers))
	for i, p := range online {
		if p == pick {
			return append(online[:i:i], online[i+1:]...)
		}
	}
	return append(online, pick)
}
