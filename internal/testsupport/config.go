package testsupport

import (
	"path/filepath"
	"testing"

	"showseed/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a config whose directories live under a per-test temp dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkingDir = filepath.Join(base, "work")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSeedRatio sets the removal threshold.
func WithSeedRatio(ratio float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Torrent.SeedRatio = ratio
	}
}

// WithShow adds a tracked show.
func WithShow(id int, name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Shows = append(b.cfg.Shows, config.Show{ID: id, Name: name})
	}
}

// WithNtfyTopic points notifications at topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the temp root backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkingDir)
}
