package downloader

import (
	"context"

	"showseed/internal/engine"
	"showseed/internal/fileutil"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/notifications"
)

// handleComplete post-processes a finished job once, or removes it after it
// has seeded to the configured ratio.
func (m *Manager) handleComplete(ctx context.Context, job *jobs.Job, handle engine.Torrent) {
	logger := logging.WithContext(ctx, m.logger)

	if !job.PostProcessed() {
		job.PostProcessOnce(func() {
			m.postProcess(ctx, job, handle)
		})
		return
	}

	ratio := job.Ratio()
	deleteFiles, claimed := job.ClaimSeedRemoval(m.seedRatio)
	if !claimed {
		job.LogStatus(func() {
			logger.Debug("torrent seeding",
				logging.String("name", job.Name()),
				logging.Float64("ratio", ratio),
				logging.Float64("target_ratio", m.seedRatio),
			)
		})
		return
	}
	logger.Info("torrent reached seed ratio; removing",
		logging.String(logging.FieldEventType, "seed_ratio_reached"),
		logging.String("name", job.Name()),
		logging.Float64("ratio", ratio),
	)
	m.removeJob(ctx, job, deleteFiles)
	m.notify(ctx, notifications.EventJobRemoved, notifications.Payload{
		"key":   job.Key(),
		"name":  job.Name(),
		"ratio": ratio,
	})
}

// postProcess hands every media file to the post-processor. Per-file failures
// are logged and never stop the remaining files.
func (m *Manager) postProcess(ctx context.Context, job *jobs.Job, handle engine.Torrent) {
	logger := logging.WithContext(ctx, m.logger)
	name := job.Name()

	info, err := handle.Info()
	if err != nil {
		logging.ErrorWithContext(logger, "completed torrent has no file list", "post_process_failed",
			logging.Error(err),
			logging.String("name", name),
		)
		return
	}

	episodes := job.Episodes()
	var succeeded int
	for _, f := range info.Files {
		path, err := fileutil.JoinUnder(m.saveDir, f.Path)
		if err != nil {
			logging.WarnWithContext(logger, "skipping file outside the data directory", "post_process_unsafe_path",
				logging.String("file", f.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file not imported"),
			)
			continue
		}
		if m.media == nil || !m.media.IsMediaFile(path) {
			continue
		}
		logger.Debug("post-processing file", logging.String("path", path))
		if m.post == nil {
			continue
		}
		ok, err := m.post.Process(ctx, path, name, episodes)
		switch {
		case err != nil:
			logging.ErrorWithContext(logger, "post-processing failed", "post_process_file_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check library permissions and free space"),
			)
		case ok:
			succeeded++
			logger.Debug("post-processed file", logging.String("path", path))
		}
	}

	if succeeded == 0 {
		logging.ErrorWithContext(logger, "no media files imported from completed torrent", "post_process_empty",
			logging.String("name", name),
			logging.String(logging.FieldErrorHint, "import the payload manually from the data directory"),
		)
		m.notify(ctx, notifications.EventError, notifications.Payload{
			"context": "post-processing " + name,
			"error":   "no media files imported",
		})
		return
	}
	logger.Info("torrent post-processed",
		logging.String(logging.FieldEventType, "job_post_processed"),
		logging.String("name", name),
		logging.Int("files", succeeded),
	)
	m.notify(ctx, notifications.EventJobPostProcessed, notifications.Payload{
		"key":   job.Key(),
		"name":  name,
		"files": succeeded,
	})
}
