package downloader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"showseed/internal/config"
	"showseed/internal/engine"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/mediafile"
	"showseed/internal/notifications"
	"showseed/internal/shows"
)

var (
	// ErrJobNotFound is returned when removing a key that is not registered.
	ErrJobNotFound = errors.New("job not found")
	// ErrAdmissionTimeout is returned when a torrent does not start in time.
	ErrAdmissionTimeout = errors.New("torrent did not start before timeout")
	// ErrDuplicateJob is returned when the key is already active.
	ErrDuplicateJob = errors.New("job already active")
)

// PostProcessor imports one completed media file into the library.
type PostProcessor interface {
	Process(ctx context.Context, path, jobName string, episodes []jobs.Episode) (bool, error)
}

// MediaClassifier selects the payload files worth post-processing.
type MediaClassifier interface {
	IsMediaFile(path string) bool
}

// ShowLookup resolves persisted show ids.
type ShowLookup interface {
	Lookup(id int) (shows.Show, error)
}

// Manager owns the job registry and drives it against the engine.
type Manager struct {
	holder   *engine.Holder
	registry *jobs.Registry
	logger   *slog.Logger

	saveDir        string
	snapshotPath   string
	seedRatio      float64
	maxConnections int
	startTimeout   time.Duration
	startPoll      time.Duration
	statusInterval time.Duration

	post     PostProcessor
	media    MediaClassifier
	shows    ShowLookup
	notifier notifications.Service

	loadMu     sync.Mutex
	warmLoaded bool
	shutdown   atomic.Bool
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

func WithPostProcessor(p PostProcessor) Option {
	return func(m *Manager) { m.post = p }
}

func WithMediaClassifier(c MediaClassifier) Option {
	return func(m *Manager) { m.media = c }
}

func WithShowLookup(l ShowLookup) Option {
	return func(m *Manager) { m.shows = l }
}

func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithStartTimeout overrides how long admission waits and how often it
// checks the torrent.
func WithStartTimeout(timeout, poll time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.startTimeout = timeout
		}
		if poll > 0 {
			m.startPoll = poll
		}
	}
}

// New builds a Manager from configuration.
func New(cfg *config.Config, holder *engine.Holder, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		holder:         holder,
		registry:       jobs.NewRegistry(),
		logger:         logger,
		saveDir:        cfg.DataDir(),
		snapshotPath:   cfg.SnapshotPath(),
		seedRatio:      cfg.Torrent.SeedRatio,
		maxConnections: cfg.Torrent.MaxConnections,
		startTimeout:   cfg.StartTimeout(),
		startPoll:      cfg.StartPollInterval(),
		statusInterval: cfg.StatusLogInterval(),
		media:          mediafile.Classifier{},
		shows:          shows.FromConfig(cfg),
		notifier:       notifications.NewService(cfg),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "downloader")
	return m
}

// Registry exposes the active jobs.
func (m *Manager) Registry() *jobs.Registry { return m.registry }

// EngineRunning reports whether the torrent engine currently exists.
func (m *Manager) EngineRunning() bool { return m.holder.Running() }

// RequestShutdown asks the next Poll to persist state and release the engine.
func (m *Manager) RequestShutdown() {
	m.shutdown.Store(true)
}

// ShutdownPending reports whether a shutdown request has not been served yet.
func (m *Manager) ShutdownPending() bool {
	return m.shutdown.Load()
}

// Jobs returns listing views in admission order.
func (m *Manager) Jobs() []jobs.View {
	list := m.registry.List()
	out := make([]jobs.View, 0, len(list))
	for _, j := range list {
		out = append(out, j.View())
	}
	return out
}

// SetRateLimits applies global caps in kB/s. It reports false when the engine
// is not running. A later engine starts from the configured caps.
func (m *Manager) SetRateLimits(downKBps, upKBps int) bool {
	down := m.holder.SetDownloadRateLimit(downKBps)
	up := m.holder.SetUploadRateLimit(upKBps)
	return down && up
}

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		m.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
