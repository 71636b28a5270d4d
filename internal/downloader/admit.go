package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"showseed/internal/engine"
	"showseed/internal/fileutil"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/notifications"
	"showseed/internal/services"
)

// ResumeSuffix is appended to the torrent name for resume artifacts.
const ResumeSuffix = ".fastresume"

// Request describes one admission.
type Request struct {
	// Descriptor is a magnet URI, an http(s) URL, or raw metainfo bytes.
	Descriptor    []byte
	PostProcessed bool
	StartedAt     time.Time
	// Key overrides the default md5 of Descriptor.
	Key      string
	Episodes []jobs.Episode
}

// Admit reports whether the torrent started. Failures are logged.
func (m *Manager) Admit(ctx context.Context, req Request) bool {
	_, err := m.TryAdmit(ctx, req)
	return err == nil
}

// TryAdmit adds req to the engine and waits until it reports a started
// phase. Only the start timeout tears the job down, without deleting files.
// When ctx ends first the wait stops but the job stays registered, so a
// following shutdown still persists it; the job is returned with ctx's error.
func (m *Manager) TryAdmit(ctx context.Context, req Request) (*jobs.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	job, handle, err := m.add(context.WithoutCancel(ctx), req)
	if err != nil {
		logger := m.logger
		if req.Key != "" {
			logger = logger.With(logging.String(logging.FieldJobKey, req.Key))
		}
		logging.ErrorWithContext(logger, "torrent admission failed", "admission_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the descriptor and the engine log"),
		)
		m.notify(ctx, notifications.EventJobStartFailed, notifications.Payload{"key": req.Key, "error": err})
		return nil, err
	}

	jobCtx := services.WithJobKey(ctx, job.Key())
	logger := logging.WithContext(jobCtx, m.logger)

	if err := m.awaitStart(jobCtx, job, handle, start); err != nil {
		if !errors.Is(err, ErrAdmissionTimeout) {
			logger.Info("admission wait interrupted; job kept",
				logging.String(logging.FieldEventType, "admission_interrupted"),
				logging.Error(err),
			)
			return job, err
		}
		logging.WarnWithContext(logger, "torrent failed to start; removing", "admission_timeout",
			logging.Duration("timeout", m.startTimeout),
			logging.Error(err),
			logging.String(logging.FieldImpact, "download abandoned, files kept"),
			logging.String(logging.FieldErrorHint, "torrent may have no peers; try another release"),
		)
		if job.ClaimRemoval() {
			m.removeJob(jobCtx, job, false)
		}
		m.notify(ctx, notifications.EventJobStartFailed, notifications.Payload{"key": job.Key(), "name": job.Name()})
		return nil, err
	}

	v := job.View()
	logger.Info("torrent started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("name", v.Name),
		logging.String("phase", string(v.Phase)),
		logging.Int64("total_size", v.TotalSize),
		logging.Time("started_at", v.StartedAt),
	)
	m.notify(ctx, notifications.EventJobStarted, notifications.Payload{"key": job.Key(), "name": v.Name})
	return job, nil
}

// add registers the job and hands the descriptor to the engine.
func (m *Manager) add(ctx context.Context, req Request) (*jobs.Job, engine.Torrent, error) {
	if len(req.Descriptor) == 0 {
		return nil, nil, fmt.Errorf("%w: empty descriptor", engine.ErrInvalidDescriptor)
	}
	eng, err := m.holder.Acquire(true)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create save dir: %w", err)
	}

	job := jobs.New(jobs.Spec{
		Key:               req.Key,
		Descriptor:        req.Descriptor,
		PostProcessed:     req.PostProcessed,
		StartedAt:         req.StartedAt,
		Episodes:          req.Episodes,
		StatusLogInterval: m.statusInterval,
	})
	if _, exists := m.registry.Get(job.Key()); exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateJob, job.Key())
	}

	params := engine.AddParams{
		SavePath:         m.saveDir,
		Sparse:           true,
		Paused:           false,
		AutoManaged:      true,
		DuplicateIsError: true,
	}
	if job.Lazy() {
		params.URL = strings.TrimSpace(string(req.Descriptor))
		m.logger.Debug("adding torrent", logging.String("url", params.URL))
	} else {
		info, err := eng.DecodeMetaInfo(req.Descriptor)
		if err != nil {
			return nil, nil, err
		}
		job.SetMetadata(info)
		params.MetaInfo = req.Descriptor
		params.ResumeData = m.readResume(info.Name)
		m.logger.Debug("adding torrent",
			logging.String("name", info.Name),
			logging.Bool("resume_data", len(params.ResumeData) > 0),
		)
	}

	handle, err := eng.Add(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	job.SetHandle(handle)
	if err := m.registry.Add(job); err != nil {
		_ = eng.Remove(handle, false)
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateJob, job.Key())
	}
	handle.SetMaxConnections(m.maxConnections)
	handle.SetMaxUploads(-1)
	return job, handle, nil
}

// readResume returns the resume artifact for name, or nil.
func (m *Manager) readResume(name string) []byte {
	path, err := m.resumePath(name)
	if err != nil {
		m.logger.Debug("resume data skipped", logging.String("name", name), logging.Error(err))
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("resume data unreadable", logging.String("name", name), logging.Error(err))
		}
		return nil
	}
	return data
}

// resumePath places the resume artifact for a torrent name in the save
// directory. Names that could leave it are rejected.
func (m *Manager) resumePath(name string) (string, error) {
	if err := fileutil.ValidName(name); err != nil {
		return "", err
	}
	return fileutil.JoinUnder(m.saveDir, name+ResumeSuffix)
}

// awaitStart sleeps in startPoll steps until the torrent has metadata and a
// started phase.
func (m *Manager) awaitStart(ctx context.Context, job *jobs.Job, handle engine.Torrent, start time.Time) error {
	timer := time.NewTimer(m.startPoll)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if handle.HasMetadata() {
			if info, err := handle.Info(); err == nil {
				job.SetMetadata(info)
			}
			st := handle.Status()
			job.Refresh(st)
			if st.Phase.Ready() {
				return nil
			}
		}
		if time.Since(start) > m.startTimeout {
			return fmt.Errorf("%w after %s", ErrAdmissionTimeout, m.startTimeout)
		}
		timer.Reset(m.startPoll)
	}
}
