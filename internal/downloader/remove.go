package downloader

import (
	"context"
	"errors"
	"fmt"

	"showseed/internal/engine"
	"showseed/internal/fileutil"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/services"
)

// Remove drops the job with key from the registry and the engine, deleting
// downloaded data when deleteFiles is set.
func (m *Manager) Remove(ctx context.Context, key string, deleteFiles bool) error {
	job, ok := m.registry.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}
	return m.removeClaimed(ctx, job, deleteFiles)
}

// RemoveHandle is Remove keyed by engine handle.
func (m *Manager) RemoveHandle(ctx context.Context, t engine.Torrent, deleteFiles bool) error {
	job, ok := m.registry.FindByHandle(t)
	if !ok {
		return ErrJobNotFound
	}
	return m.removeClaimed(ctx, job, deleteFiles)
}

func (m *Manager) removeClaimed(ctx context.Context, job *jobs.Job, deleteFiles bool) error {
	if !job.ClaimRemoval() {
		// Another caller owns the teardown.
		return nil
	}
	m.removeJob(services.WithJobKey(ctx, job.Key()), job, deleteFiles)
	return nil
}

// removeJob performs a claimed removal. Resume file deletion is best-effort;
// an engine that is already gone leaves nothing to drop.
func (m *Manager) removeJob(ctx context.Context, job *jobs.Job, deleteFiles bool) {
	logger := logging.WithContext(ctx, m.logger)
	m.registry.Remove(job.Key())

	if name := job.Name(); name != "" {
		if path, err := m.resumePath(name); err != nil {
			logger.Debug("resume file skipped", logging.Error(err))
		} else if _, err := fileutil.RemoveIfExists(path); err != nil {
			logger.Debug("resume file not removed", logging.Error(err))
		}
	}

	handle := job.Handle()
	if handle == nil {
		return
	}
	eng, err := m.holder.Acquire(false)
	if err != nil {
		return
	}
	if err := eng.Remove(handle, deleteFiles); err != nil && !errors.Is(err, engine.ErrInvalidHandle) {
		logging.WarnWithContext(logger, "engine removal failed", "engine_remove_failed",
			logging.Error(err),
			logging.Bool("delete_files", deleteFiles),
			logging.String(logging.FieldImpact, "payload may remain on disk"),
			logging.String(logging.FieldErrorHint, "remove leftover files from the data directory"),
		)
		return
	}
	logger.Info("torrent removed",
		logging.String(logging.FieldEventType, "job_removed"),
		logging.String("name", job.Name()),
		logging.Bool("delete_files", deleteFiles),
	)
}
