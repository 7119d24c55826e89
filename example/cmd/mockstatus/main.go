// Standalone mock status API for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockstatus
//
// Then in another terminal:
//
//	go run ./cmd/playerpulse run -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
)

type player struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type rosters struct {
	mu      sync.Mutex
	servers map[string][]player
}

func main() {
	fmt.Println("Mock status API starting on :9999")
	fmt.Println("  GET  /{server}                      status document")
	fmt.Println("  POST /{server}/join?uuid=..&name=.. add a player")
	fmt.Println("  POST /{server}/leave?uuid=..        remove a player")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	rs := &rosters{servers: make(map[string][]player)}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		server, action, _ := strings.Cut(path, "/")
		q := r.URL.Query()

		rs.mu.Lock()
		list := rs.servers[server]
		switch {
		case r.Method == http.MethodPost && action == "join":
			list = append(list, player{UUID: q.Get("uuid"), Name: q.Get("name")})
			slog.Info("player joined", "server", server, "name", q.Get("name"))
		case r.Method == http.MethodPost && action == "leave":
			kept := list[:0:0]
			for _, p := range list {
				if p.UUID != q.Get("uuid") {
					kept = append(kept, p)
				}
			}
			list = kept
			slog.Info("player left", "server", server, "uuid", q.Get("uuid"))
		}
		rs.servers[server] = list
		snapshot := append([]player{}, list...)
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"online":   true,
			"hostname": server,
			"players": map[string]any{
				"online": len(snapshot),
				"max":    20,
				"list":   snapshot,
			},
		})
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
