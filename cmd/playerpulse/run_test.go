package main

import (
	"os"
	"strings"
	"testing"

	"github.com/jpalmerr/playerpulse/config"
	"github.com/spf13/cobra"
)

func newOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	addOverrideFlags(cmd)
	return cmd
}

func clearOverrideEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"INTERVAL", "CACHE_TTL", "SERVERS", "RECIPIENTS", "MESSENGER", "DISCORD_TOKEN"} {
		t.Setenv(name, "")
	}
}

func TestApplyOverrides_KeyValueArgs(t *testing.T) {
	clearOverrideEnv(t)

	cmd := newOverrideCmd()
	args := []string{"servers=mc.example.com", "discord-token=tok-123", "recipients=111;222"}
	if err := applyOverrides(cmd, args); err != nil {
		t.Fatalf("applyOverrides() error = %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := strings.Join(cfg.Servers, ","); got != "mc.example.com" {
		t.Errorf("Servers = %q, want mc.example.com", got)
	}
	if got := strings.Join(cfg.Recipients, ","); got != "111,222" {
		t.Errorf("Recipients = %q, want 111,222", got)
	}
	if cfg.Messenger.Discord.Token != "tok-123" {
		t.Errorf("Discord.Token = %q, want tok-123", cfg.Messenger.Discord.Token)
	}
}

func TestApplyOverrides_FlagsBeatEnvironment(t *testing.T) {
	clearOverrideEnv(t)
	t.Setenv("RECIPIENTS", "from-env")
	t.Setenv("DISCORD_TOKEN", "env-token")

	cmd := newOverrideCmd()
	if err := cmd.Flags().Set("recipients", "from-flag"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := applyOverrides(cmd, nil); err != nil {
		t.Fatalf("applyOverrides() error = %v", err)
	}

	if got := os.Getenv("RECIPIENTS"); got != "from-flag" {
		t.Errorf("RECIPIENTS = %q, want from-flag", got)
	}
	// unchanged flags leave the environment alone
	if got := os.Getenv("DISCORD_TOKEN"); got != "env-token" {
		t.Errorf("DISCORD_TOKEN = %q, want env-token", got)
	}
}

func TestApplyOverrides_InvalidArgs(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr string
	}{
		{"not key=value", "mc.example.com", "want key=value"},
		{"unknown key", "interval=5s", "unknown argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOverrideEnv(t)
			err := applyOverrides(newOverrideCmd(), []string{tt.arg})
			if err == nil {
				t.Fatal("applyOverrides() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("applyOverrides() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
