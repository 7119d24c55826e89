package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/playerpulse"
)

func main() {
	// start mock status API (see mock_server.go)
	go StartMockStatusServer(":9999")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pp, err := playerpulse.New(
		playerpulse.WithServers("survival.local", "creative.local"),
		playerpulse.WithRecipients("demo-user"),
		playerpulse.WithStatusAPI("http://localhost:9999"),
		playerpulse.WithPollingInterval(5*time.Second),
		playerpulse.WithCacheTTL(0),
		playerpulse.WithMessenger(playerpulse.NewLogMessenger(logger.With("component", "messenger"))),
		playerpulse.WithStatusCallback(func(statuses []playerpulse.ServerStatus) {
			for _, s := range statuses {
				fmt.Printf("  %-16s online=%v players=%d\n", s.Server, s.Online, len(s.Players))
			}
		}),
		playerpulse.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create playerpulse", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   PlayerPulse Demo                                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Health: http://localhost:9339/health                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Servers:                                            ║")
	fmt.Println("  ║   • 2 mock servers, players join every 20-60s         ║")
	fmt.Println("  ║   • notifications are logged, not sent                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pp.Start(ctx); err != nil {
		slog.Error("playerpulse error", "error", err)
		os.Exit(1)
	}
}
