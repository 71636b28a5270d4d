package downloader

import (
	"context"

	"showseed/internal/engine"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/services"
)

// Poll runs one pass of the job loop. It is safe to call concurrently; the
// per-job decision lock keeps post-processing and removal single-shot.
func (m *Manager) Poll(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	m.warmStart(ctx)

	eng, err := m.holder.Acquire(false)
	if err != nil {
		if m.shutdown.Load() {
			m.resetAfterShutdown()
		}
		return
	}
	m.drainAlerts(eng)

	for _, job := range m.registry.List() {
		if ctx.Err() != nil {
			break
		}
		m.pollJob(services.WithJobKey(ctx, job.Key()), job)
	}

	if m.shutdown.Load() {
		m.shutdownEngine(ctx, eng)
	}
}

func (m *Manager) warmStart(ctx context.Context) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if m.warmLoaded {
		return
	}
	m.warmLoaded = true
	m.load(ctx, true)
}

func (m *Manager) drainAlerts(eng engine.Engine) {
	for {
		alert, ok := eng.PopAlert()
		if !ok {
			return
		}
		m.logger.Debug("engine alert",
			logging.String("category", alert.Category.String()),
			logging.String("info_hash", alert.InfoHash),
			logging.String("message", alert.Message),
		)
	}
}

// pollJob refreshes one job from the engine and applies the phase action.
func (m *Manager) pollJob(ctx context.Context, job *jobs.Job) {
	if job.Removing() {
		return
	}
	handle := job.Handle()
	if handle == nil || !handle.Valid() {
		return
	}
	logger := logging.WithContext(ctx, m.logger)

	if handle.HasMetadata() {
		if info, err := handle.Info(); err == nil {
			job.SetMetadata(info)
		}
		if job.NeedsMetaInfo() {
			if data, err := handle.MetaInfo(); err == nil && job.CacheMetaInfo(data) {
				logger.Debug("cached metainfo for lazy torrent", logging.String("name", job.Name()))
			}
		}
	}

	st := handle.Status()
	job.Refresh(st)

	switch {
	case st.Phase.Complete():
		m.handleComplete(ctx, job, handle)
	case st.Phase == engine.PhaseDownloading:
		job.LogStatus(func() {
			logger.Debug("torrent downloading",
				logging.String("name", job.Name()),
				logging.Float64("progress_percent", st.Progress*100),
				logging.Int64("download_rate", st.DownloadRate),
			)
		})
	}
}
