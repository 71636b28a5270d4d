package downloader

import (
	"context"
	"errors"
	"os"

	"showseed/internal/engine"
	"showseed/internal/fileutil"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/snapshot"
)

// shutdownEngine pauses the engine, writes resume data and the snapshot,
// then discards the engine and resets for an in-place restart.
func (m *Manager) shutdownEngine(ctx context.Context, eng engine.Engine) {
	m.logger.Debug("torrent shutdown requested")
	eng.Pause()

	for _, job := range m.registry.List() {
		handle := job.Handle()
		if handle == nil || !handle.Valid() || !handle.HasMetadata() {
			continue
		}
		info, err := handle.Info()
		if err != nil || info.Name == "" {
			continue
		}
		data, err := handle.ResumeData()
		if err != nil {
			m.logger.Debug("resume data unavailable", logging.String(logging.FieldJobKey, job.Key()), logging.Error(err))
			continue
		}
		path, err := m.resumePath(info.Name)
		if err != nil {
			m.logger.Debug("resume data skipped", logging.String(logging.FieldJobKey, job.Key()), logging.Error(err))
			continue
		}
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			logging.WarnWithContext(m.logger, "resume data not written", "resume_write_failed",
				logging.String(logging.FieldJobKey, job.Key()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "torrent rechecks pieces on restart"),
			)
			continue
		}
		m.logger.Debug("saved resume data", logging.String("name", info.Name))
	}

	m.save(ctx)
	m.holder.Discard()
	m.resetAfterShutdown()
}

// resetAfterShutdown forgets the registry and re-arms the warm start so the
// next Poll reloads the snapshot.
func (m *Manager) resetAfterShutdown() {
	m.registry.Clear()
	m.loadMu.Lock()
	m.warmLoaded = false
	m.loadMu.Unlock()
	m.shutdown.Store(false)
}

// save writes the snapshot when any job is active.
func (m *Manager) save(ctx context.Context) {
	list := m.registry.List()
	if len(list) == 0 {
		return
	}
	records := make([]snapshot.Record, 0, len(list))
	for _, job := range list {
		eps := job.Episodes()
		rec := snapshot.Record{
			Key:           job.Key(),
			Descriptor:    job.Descriptor(),
			PostProcessed: job.PostProcessed(),
			StartedAt:     job.StartedAt(),
		}
		for _, ep := range eps {
			rec.Episodes = append(rec.Episodes, snapshot.Episode{ShowID: ep.ShowID, Season: ep.Season, Number: ep.Number})
		}
		records = append(records, rec)
	}
	if err := snapshot.Save(ctx, m.snapshotPath, records); err != nil {
		logging.ErrorWithContext(m.logger, "snapshot save failed", "snapshot_save_failed",
			logging.String("path", m.snapshotPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-add active torrents after restart"),
		)
		return
	}
	m.logger.Debug("saved running torrents",
		logging.String("path", m.snapshotPath),
		logging.Int("jobs", len(records)),
	)
}

// load re-admits every snapshot entry. A failed show lookup stops the load;
// jobs admitted before it stay active. An interrupted load keeps the snapshot.
func (m *Manager) load(ctx context.Context, deleteAfter bool) {
	if !snapshot.Exists(m.snapshotPath) {
		return
	}
	m.logger.Debug("saved torrents found, loading", logging.String("path", m.snapshotPath))

	if err := m.readmit(ctx); err != nil {
		logging.ErrorWithContext(m.logger, "failure while reloading running torrents", "snapshot_load_failed",
			logging.String("path", m.snapshotPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-add the missing torrents manually"),
		)
	}
	if ctx.Err() != nil {
		m.logger.Info("snapshot load interrupted; keeping file",
			logging.String(logging.FieldEventType, "snapshot_load_interrupted"),
			logging.String("path", m.snapshotPath),
			logging.Int("jobs", m.registry.Len()),
		)
		return
	}
	if deleteAfter {
		if err := snapshot.Remove(m.snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("snapshot not removed", logging.Error(err))
		}
	}
}

// readmit keeps registering records after ctx ends so the shutdown save
// covers all of them.
func (m *Manager) readmit(ctx context.Context) error {
	records, err := snapshot.Load(context.WithoutCancel(ctx), m.snapshotPath)
	if err != nil {
		return err
	}
	for _, rec := range records {
		eps := make([]jobs.Episode, 0, len(rec.Episodes))
		for _, ep := range rec.Episodes {
			show, err := m.shows.Lookup(ep.ShowID)
			if err != nil {
				return err
			}
			eps = append(eps, jobs.Episode{ShowID: show.ID, ShowName: show.Name, Season: ep.Season, Number: ep.Number})
		}
		m.Admit(ctx, Request{
			Descriptor:    rec.Descriptor,
			PostProcessed: rec.PostProcessed,
			StartedAt:     rec.StartedAt,
			Key:           rec.Key,
			Episodes:      eps,
		})
	}
	return nil
}
