package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"showseed/internal/logging"
)

// Holder owns the process-wide engine. The engine is created lazily on first
// use and only torn down by Discard.
type Holder struct {
	mu       sync.Mutex
	factory  Factory
	settings Settings
	engine   Engine
	logger   *slog.Logger
}

// NewHolder returns a Holder that builds engines with factory.
func NewHolder(factory Factory, settings Settings, logger *slog.Logger) *Holder {
	if settings.AlertMask == 0 {
		settings.AlertMask = DefaultAlertMask
	}
	return &Holder{
		factory:  factory,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "engine"),
	}
}

// Acquire returns the engine, creating it when createIfNeeded is set.
// Concurrent first callers observe exactly one construction.
func (h *Holder) Acquire(createIfNeeded bool) (Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine != nil {
		return h.engine, nil
	}
	if !createIfNeeded {
		return nil, ErrUnavailable
	}
	if h.factory == nil {
		return nil, fmt.Errorf("%w: no engine factory configured", ErrUnavailable)
	}
	settings := h.settings
	if settings.Logger == nil {
		settings.Logger = h.logger
	}
	eng, err := h.factory(settings)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	h.engine = eng
	h.logger.Info("engine started",
		logging.String(logging.FieldEventType, "engine_started"),
		logging.String("save_path", settings.SavePath),
		logging.Int("listen_port_min", settings.ListenPortMin),
		logging.Int("listen_port_max", settings.ListenPortMax),
		logging.Int("download_limit_bps", settings.DownloadRateLimit),
		logging.Int("upload_limit_bps", settings.UploadRateLimit),
	)
	return eng, nil
}

// Running reports whether an engine currently exists.
func (h *Holder) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine != nil
}

// SetDownloadRateLimit applies a global cap in kB/s. It is a no-op while the
// engine does not exist.
func (h *Holder) SetDownloadRateLimit(kbps int) bool {
	eng, err := h.Acquire(false)
	if err != nil {
		return false
	}
	eng.SetDownloadRateLimit(BytesPerSecond(kbps))
	return true
}

// SetUploadRateLimit applies a global cap in kB/s. It is a no-op while the
// engine does not exist.
func (h *Holder) SetUploadRateLimit(kbps int) bool {
	eng, err := h.Acquire(false)
	if err != nil {
		return false
	}
	eng.SetUploadRateLimit(BytesPerSecond(kbps))
	return true
}

// Discard pauses and closes the engine and forgets it. A later Acquire(true)
// builds a fresh instance.
func (h *Holder) Discard() {
	h.mu.Lock()
	eng := h.engine
	h.engine = nil
	h.mu.Unlock()
	if eng == nil {
		return
	}
	eng.Pause()
	if err := eng.Close(); err != nil {
		logging.WarnWithContext(h.logger, "engine close failed", "engine_close_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "listen ports may stay bound until exit"),
		)
		return
	}
	h.logger.Info("engine stopped", logging.String(logging.FieldEventType, "engine_stopped"))
}

// BytesPerSecond converts a kB/s setting to bytes per second; non-positive means unlimited.
func BytesPerSecond(kbps int) int {
	if kbps <= 0 {
		return 0
	}
	return kbps * 1024
}
