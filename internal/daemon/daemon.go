package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"showseed/internal/config"
	"showseed/internal/downloader"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/notifications"
	"showseed/internal/preflight"
	"showseed/internal/services"
)

// Daemon runs the download poll loop and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *downloader.Manager
	notifier notifications.Service
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	checks    []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     time.Time          `json:"started_at"`
	EngineRunning bool               `json:"engine_running"`
	JobCount      int                `json:"job_count"`
	Phases        map[string]int     `json:"phases"`
	LockPath      string             `json:"lock_path"`
	SnapshotPath  string             `json:"snapshot_path"`
	LogPath       string             `json:"log_path"`
	Preflight     []preflight.Result `json:"preflight"`
}

// AddRequest describes a job submitted over IPC or the CLI.
type AddRequest struct {
	Descriptor    []byte
	Key           string
	PostProcessed bool
	Episodes      []jobs.Episode
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithNotifier overrides the notification service used for test messages.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, manager *downloader.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || manager == nil {
		return nil, errors.New("daemon requires config and download manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		manager:  manager,
		notifier: notifications.NewService(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another showseed daemon instance is already running")
	}

	d.checks = preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(d.checks) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "downloads or imports may fail until fixed"),
			logging.String(logging.FieldErrorHint, "fix the path or service and restart the daemon"),
		)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(loopCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.done = make(chan struct{})
	d.startedAt = time.Now()
	d.running.Store(true)
	go d.loop(loopCtx, d.done)

	d.logger.Info("showseed daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Duration("poll_interval", d.cfg.PollInterval()),
	)
	return nil
}

// loop polls immediately, which also restores the previous snapshot, then on
// every tick. Polls never overlap.
func (d *Daemon) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	d.manager.Poll(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.manager.Poll(ctx)
		}
	}
}

// Stop halts the poll loop, persists active jobs, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.api.stop()

	d.manager.RequestShutdown()
	d.manager.Poll(context.Background())

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next daemon start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("showseed daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Running reports whether the poll loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// AddJob admits a torrent and blocks until it starts or the admission timeout
// elapses.
func (d *Daemon) AddJob(ctx context.Context, req AddRequest) (jobs.View, error) {
	if !d.running.Load() {
		return jobs.View{}, errors.New("daemon is not running")
	}
	if len(req.Descriptor) == 0 {
		return jobs.View{}, services.Wrap(services.ErrValidation, "daemon", "add", "descriptor is required", nil)
	}
	job, err := d.manager.TryAdmit(ctx, downloader.Request{
		Descriptor:    req.Descriptor,
		Key:           strings.TrimSpace(req.Key),
		PostProcessed: req.PostProcessed,
		Episodes:      req.Episodes,
	})
	if err != nil {
		return jobs.View{}, err
	}
	return job.View(), nil
}

// ListJobs returns the active jobs in admission order.
func (d *Daemon) ListJobs() []jobs.View {
	return d.manager.Jobs()
}

// RemoveJob drops a job, optionally deleting its payload.
func (d *Daemon) RemoveJob(ctx context.Context, key string, deleteFiles bool) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return services.Wrap(services.ErrValidation, "daemon", "remove", "job key is required", nil)
	}
	return d.manager.Remove(ctx, key, deleteFiles)
}

// SetLimits applies global rate caps in kB/s; zero or negative means
// unlimited. It reports false while no engine is running.
func (d *Daemon) SetLimits(downKBps, upKBps int) bool {
	applied := d.manager.SetRateLimits(downKBps, upKBps)
	d.logger.Info("rate limits updated",
		logging.String(logging.FieldEventType, "rate_limits_updated"),
		logging.Int("download_kbps", downKBps),
		logging.Int("upload_kbps", upKBps),
		logging.Bool("engine_running", applied),
	)
	return applied
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	startedAt := d.startedAt
	checks := append([]preflight.Result(nil), d.checks...)
	d.mu.Unlock()

	views := d.manager.Jobs()
	phases := make(map[string]int)
	for _, v := range views {
		phases[string(v.Phase)]++
	}
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     startedAt,
		EngineRunning: d.manager.EngineRunning(),
		JobCount:      len(views),
		Phases:        phases,
		LockPath:      d.lockPath,
		SnapshotPath:  d.cfg.SnapshotPath(),
		LogPath:       d.cfg.LogPath(),
		Preflight:     checks,
	}
}
