package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"showseed/internal/config"
	"showseed/internal/daemon"
	"showseed/internal/daemonctl"
	"showseed/internal/downloader"
	"showseed/internal/engine"
	"showseed/internal/engine/native"
	"showseed/internal/ipc"
	"showseed/internal/logging"
	"showseed/internal/notifications"
	"showseed/internal/organizer"
	"showseed/internal/shows"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Factory overrides the torrent engine, mostly for tests.
	Factory engine.Factory
	// Ready, when set, is called once the IPC socket accepts connections.
	Ready func()
}

// Run starts the showseed daemon and blocks until ctx is canceled or the
// process receives SIGINT/SIGTERM. Active jobs are persisted before it returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	sessionID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, sessionID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	if err := daemonctl.WritePID(cfg.PIDPath()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.PIDPath())

	factory := opts.Factory
	if factory == nil {
		factory = native.Factory
	}
	holder := engine.NewHolder(factory, engine.SettingsFromConfig(cfg, logger), logger)
	notifier := notifications.NewService(cfg)
	catalog := shows.FromConfig(cfg)

	manager := downloader.New(cfg, holder, logger,
		downloader.WithPostProcessor(organizer.New(cfg, logger)),
		downloader.WithShowLookup(catalog),
		downloader.WithNotifier(notifier),
	)

	d, err := daemon.New(cfg, manager, logger, daemon.WithNotifier(notifier))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, catalog, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()
	if opts.Ready != nil {
		opts.Ready()
	}

	<-signalCtx.Done()
	logger.Info("showseed daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.Int("active_jobs", len(d.ListJobs())),
	)
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("working_dir", cfg.Paths.WorkingDir),
		logging.String("library_dir", cfg.TVLibraryDir()),
		logging.Float64("seed_ratio", cfg.Torrent.SeedRatio),
		logging.Int("listen_port_min", cfg.Torrent.ListenPortMin),
		logging.Int("listen_port_max", cfg.Torrent.ListenPortMax),
		logging.Int("known_shows", len(cfg.Shows)),
		logging.Bool("jellyfin_enabled", cfg.Jellyfin.Enabled),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("api_enabled", cfg.API.Bind != ""),
	)
}
