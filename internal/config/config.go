package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkingDir string `toml:"working_dir"`
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
}

// Torrent contains engine and admission settings.
type Torrent struct {
	MaxDownloadKBps     int     `toml:"max_download_kbps"`
	MaxUploadKBps       int     `toml:"max_upload_kbps"`
	SeedRatio           float64 `toml:"seed_ratio"`
	ListenPortMin       int     `toml:"listen_port_min"`
	ListenPortMax       int     `toml:"listen_port_max"`
	StartTimeout        int     `toml:"start_timeout"`
	StartPollIntervalMS int     `toml:"start_poll_interval_ms"`
	MaxConnections      int     `toml:"max_connections"`
	UserAgent           string  `toml:"user_agent"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval      int `toml:"poll_interval"`
	StatusLogInterval int `toml:"status_log_interval"`
}

// Library contains configuration for the media library structure.
type Library struct {
	TVDir             string `toml:"tv_dir"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
}

// Jellyfin contains configuration for Jellyfin Media Server integration.
type Jellyfin struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	APIKey  string `toml:"api_key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Started        bool   `toml:"started"`
	PostProcessed  bool   `toml:"post_processed"`
	Removed        bool   `toml:"removed"`
	Errors         bool   `toml:"errors"`
}

// API contains configuration for the read-only HTTP status API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Show maps a numeric show id to its library folder name.
type Show struct {
	ID   int    `toml:"id"`
	Name string `toml:"name"`
}

// Config encapsulates all configuration values for showseed.
//
// Configuration sections by subsystem:
//   - Paths: working, library and log directories
//   - Torrent: engine rate caps, listen ports, admission timing, seed ratio
//   - Workflow: poll and status intervals
//   - Library: output layout for post-processed episodes
//   - Jellyfin: media server library refresh integration
//   - Notifications: ntfy push notification settings
//   - API: optional HTTP status endpoint
//   - Logging: log format and level
//   - Shows: known show ids used to resolve persisted episodes
type Config struct {
	Paths         Paths         `toml:"paths"`
	Torrent       Torrent       `toml:"torrent"`
	Workflow      Workflow      `toml:"workflow"`
	Library       Library       `toml:"library"`
	Jellyfin      Jellyfin      `toml:"jellyfin"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
	Shows         []Show        `toml:"shows"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/showseed/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("showseed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can keep seeding
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkingDir, c.DataDir(), c.RunningDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DataDir is where the engine stores torrent payloads and resume files.
func (c *Config) DataDir() string {
	return filepath.Join(c.Paths.WorkingDir, "data")
}

// RunningDir holds the snapshot of in-flight jobs across restarts.
func (c *Config) RunningDir() string {
	return filepath.Join(c.Paths.WorkingDir, "running")
}

// SnapshotPath returns the location of the persisted job snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.RunningDir(), "jobs.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "showseed.sock")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "showseed.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "showseed.pid")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "showseed.log")
}

// TVLibraryDir returns the root that post-processed episodes are copied into.
func (c *Config) TVLibraryDir() string {
	return filepath.Join(c.Paths.LibraryDir, c.Library.TVDir)
}

// StartTimeout bounds how long admission waits for a torrent to become ready.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.Torrent.StartTimeout) * time.Second
}

// StartPollInterval is the admission readiness sleep interval.
func (c *Config) StartPollInterval() time.Duration {
	return time.Duration(c.Torrent.StartPollIntervalMS) * time.Millisecond
}

// PollInterval is the scheduler tick for the download poll loop.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// StatusLogInterval limits how often a single job's status line is logged.
func (c *Config) StatusLogInterval() time.Duration {
	return time.Duration(c.Workflow.StatusLogInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
