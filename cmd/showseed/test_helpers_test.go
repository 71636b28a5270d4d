package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"showseed/internal/config"
	"showseed/internal/daemon"
	"showseed/internal/downloader"
	"showseed/internal/engine/enginetest"
	"showseed/internal/ipc"
	"showseed/internal/logging"
	"showseed/internal/shows"
	"showseed/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *enginetest.Engine
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
}

// setupCLIConfig writes a config file without starting a daemon.
func setupCLIConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithShow(7, "Example Show"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return cfg, configPath
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg, configPath := setupCLIConfig(t)
	fake, holder := testsupport.NewFakeEngine(t, cfg)
	logger := logging.NewNop()
	catalog := shows.FromConfig(cfg)
	mgr := downloader.New(cfg, holder, logger,
		downloader.WithShowLookup(catalog),
		downloader.WithStartTimeout(time.Second, 5*time.Millisecond),
	)
	d, err := daemon.New(cfg, mgr, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, catalog, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		fake:       fake,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nworking_dir = %q\nlibrary_dir = %q\nlog_dir = %q\n\n",
		cfg.Paths.WorkingDir, cfg.Paths.LibraryDir, cfg.Paths.LogDir)
	for _, show := range cfg.Shows {
		fmt.Fprintf(&b, "[[shows]]\nid = %d\nname = %q\n\n", show.ID, show.Name)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeTorrentFile registers data with the fake engine and stores it on disk.
func writeTorrentFile(t *testing.T, env *cliTestEnv, name string) string {
	t.Helper()
	data := []byte("d4:info" + name + "e")
	env.fake.RegisterMetaInfo(data, name)
	path := filepath.Join(t.TempDir(), name+".torrent")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write torrent: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}
