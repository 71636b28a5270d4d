package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"showseed/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWorking := filepath.Join(tempHome, ".local", "share", "showseed")
	if cfg.Paths.WorkingDir != wantWorking {
		t.Fatalf("unexpected working dir: got %q want %q", cfg.Paths.WorkingDir, wantWorking)
	}
	if cfg.DataDir() != filepath.Join(wantWorking, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir())
	}
	if cfg.SnapshotPath() != filepath.Join(wantWorking, "running", "jobs.db") {
		t.Fatalf("unexpected snapshot path: %q", cfg.SnapshotPath())
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "library") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Torrent.ListenPortMin != 6881 || cfg.Torrent.ListenPortMax != 6891 {
		t.Fatalf("unexpected listen range: %d-%d", cfg.Torrent.ListenPortMin, cfg.Torrent.ListenPortMax)
	}
	if cfg.StartTimeout() != 90*time.Second {
		t.Fatalf("unexpected start timeout: %s", cfg.StartTimeout())
	}
	if cfg.StartPollInterval() != 500*time.Millisecond {
		t.Fatalf("unexpected start poll interval: %s", cfg.StartPollInterval())
	}
	if cfg.StatusLogInterval() != 10*time.Minute {
		t.Fatalf("unexpected status interval: %s", cfg.StatusLogInterval())
	}
	if cfg.Torrent.MaxConnections != 128 {
		t.Fatalf("unexpected max connections: %d", cfg.Torrent.MaxConnections)
	}
	if cfg.Jellyfin.Enabled {
		t.Fatal("expected Jellyfin disabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.WorkingDir, cfg.DataDir(), cfg.RunningDir(), cfg.Paths.LogDir, cfg.Paths.LibraryDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "showseed.toml")

	type payload struct {
		Torrent struct {
			SeedRatio       float64 `toml:"seed_ratio"`
			MaxDownloadKBps int     `toml:"max_download_kbps"`
			StartTimeout    int     `toml:"start_timeout"`
		} `toml:"torrent"`
		Library struct {
			TVDir string `toml:"tv_dir"`
		} `toml:"library"`
		Shows []config.Show `toml:"shows"`
	}
	custom := payload{}
	custom.Torrent.SeedRatio = 2.5
	custom.Torrent.MaxDownloadKBps = 512
	custom.Torrent.StartTimeout = 30
	custom.Library.TVDir = "/series/"
	custom.Shows = []config.Show{{ID: 81189, Name: " Breaking Bad "}}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Torrent.SeedRatio != 2.5 {
		t.Fatalf("expected seed ratio 2.5, got %v", cfg.Torrent.SeedRatio)
	}
	if cfg.Torrent.MaxDownloadKBps != 512 {
		t.Fatalf("expected download cap 512, got %d", cfg.Torrent.MaxDownloadKBps)
	}
	if cfg.StartTimeout() != 30*time.Second {
		t.Fatalf("expected start timeout 30s, got %s", cfg.StartTimeout())
	}
	if cfg.Library.TVDir != "series" {
		t.Fatalf("expected tv dir trimmed to series, got %q", cfg.Library.TVDir)
	}
	if len(cfg.Shows) != 1 || cfg.Shows[0].Name != "Breaking Bad" {
		t.Fatalf("unexpected shows: %+v", cfg.Shows)
	}
}

func TestEnvFallbacksApplyWhenUnset(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("JELLYFIN_API_KEY", "env-jellyfin")
	t.Setenv("SHOWSEED_NTFY_TOPIC", "https://ntfy.example/seed")
	t.Setenv("SHOWSEED_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Jellyfin.APIKey != "env-jellyfin" {
		t.Errorf("expected Jellyfin key from env, got %q", cfg.Jellyfin.APIKey)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/seed" {
		t.Errorf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("expected api token from env, got %q", cfg.API.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[torrent]") {
		t.Fatalf("sample config missing torrent section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkingDir, "showseed") {
		t.Fatalf("expected working dir to contain showseed, got %q", cfg.Paths.WorkingDir)
	}
	if cfg.Torrent.StartTimeout != 90 {
		t.Fatalf("expected sample start timeout 90, got %d", cfg.Torrent.StartTimeout)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative seed ratio", func(c *config.Config) { c.Torrent.SeedRatio = -1 }},
		{"port range inverted", func(c *config.Config) { c.Torrent.ListenPortMax = c.Torrent.ListenPortMin - 1 }},
		{"zero start timeout", func(c *config.Config) { c.Torrent.StartTimeout = 0 }},
		{"zero poll interval", func(c *config.Config) { c.Workflow.PollInterval = 0 }},
		{"jellyfin without url", func(c *config.Config) {
			c.Jellyfin.Enabled = true
			c.Jellyfin.APIKey = "key"
		}},
		{"duplicate show id", func(c *config.Config) {
			c.Shows = []config.Show{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}
		}},
		{"unnamed show", func(c *config.Config) { c.Shows = []config.Show{{ID: 3}} }},
		{"api bind without port", func(c *config.Config) { c.API.Bind = "localhost" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
