package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/edgard/clearskybot/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Platform.Kind != "log" {
		t.Errorf("Platform.Kind = %q, want log", cfg.Platform.Kind)
	}
	if cfg.Platform.Telegram.ServerURL != "https://api.telegram.org" {
		t.Errorf("Platform.Telegram.ServerURL = %q, want the public Bot API", cfg.Platform.Telegram.ServerURL)
	}
	if cfg.Poster.Hour != 17 {
		t.Errorf("Poster.Hour = %d, want 17", cfg.Poster.Hour)
	}
	if cfg.Reactor.PollInterval != 10*time.Second {
		t.Errorf("Reactor.PollInterval = %v, want 10s", cfg.Reactor.PollInterval)
	}
	if cfg.Resolver.RetryDelay != 5*time.Second || cfg.Resolver.MaxAttempts != 0 {
		t.Errorf("Resolver = %+v, want 5s delay and unlimited attempts", cfg.Resolver)
	}
	if cfg.Poster.Location == nil {
		t.Error("Poster.Location not resolved")
	}
	if diff := cmp.Diff(config.DefaultGreetings, cfg.Poster.Greetings); diff != "" {
		t.Errorf("Poster.Greetings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(config.DefaultMessages, cfg.Messages); diff != "" {
		t.Errorf("Messages mismatch (-want +got):\n%s", diff)
	}
	task, ok := cfg.Scheduler.Tasks["sql_maintenance"]
	if !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("sql_maintenance task = %+v (present %v), want enabled with a schedule", task, ok)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
log:
  level: debug
  json: true
platform:
  kind: telegram
  telegram:
    token: "123:abc"
    channel_id: -1001
poster:
  hour: 21
  timezone: America/Denver
  greetings: ["Hello"]
reactor:
  poll_interval: 30s
resolver:
  max_attempts: 3
`)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
	if cfg.Platform.Telegram.Token != "123:abc" || cfg.Platform.Telegram.ChannelID != -1001 {
		t.Errorf("Telegram = %+v", cfg.Platform.Telegram)
	}
	if cfg.Poster.Hour != 21 || cfg.Poster.Location.String() != "America/Denver" {
		t.Errorf("Poster hour/location = %d/%v", cfg.Poster.Hour, cfg.Poster.Location)
	}
	if diff := cmp.Diff([]string{"Hello"}, cfg.Poster.Greetings); diff != "" {
		t.Errorf("Greetings mismatch (-want +got):\n%s", diff)
	}
	if cfg.Reactor.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Reactor.PollInterval)
	}
	if cfg.Resolver.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Resolver.MaxAttempts)
	}
	if cfg.Files.Registry != config.DefaultRegistryPath {
		t.Errorf("Files.Registry = %q, want default", cfg.Files.Registry)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CLEARSKY_POSTER_HOUR", "6")
	t.Setenv("CLEARSKY_FILES_CURSOR", "/var/lib/clearsky/cursor.txt")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Poster.Hour != 6 {
		t.Errorf("Poster.Hour = %d, want 6", cfg.Poster.Hour)
	}
	if cfg.Files.Cursor != "/var/lib/clearsky/cursor.txt" {
		t.Errorf("Files.Cursor = %q", cfg.Files.Cursor)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "hour out of range", content: "poster:\n  hour: 24\n"},
		{name: "unknown platform", content: "platform:\n  kind: mastodon\n"},
		{name: "telegram without token", content: "platform:\n  kind: telegram\n"},
		{name: "bad timezone", content: "poster:\n  timezone: Mars/Olympus\n"},
		{name: "bad log level", content: "log:\n  level: loud\n"},
		{name: "poll interval too short", content: "reactor:\n  poll_interval: 10ms\n"},
		{name: "malformed yaml", content: "poster: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadConfig(writeConfig(t, tt.content))
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("LoadConfig error = %v, want ErrConfiguration", err)
			}
		})
	}
}
