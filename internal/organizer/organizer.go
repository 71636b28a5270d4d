package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"showseed/internal/config"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/services"
	"showseed/internal/services/jellyfin"
)

// ErrPostProcessingFailed wraps every import failure.
var ErrPostProcessingFailed = errors.New("post-processing failed")

// Organizer copies media into the library.
type Organizer struct {
	library jellyfin.Service
	tvRoot  string
	refresh bool
	logger  *slog.Logger
}

// New builds an Organizer from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	refresh, _ := shouldRefreshJellyfin(cfg)
	return &Organizer{
		library: jellyfin.NewConfiguredService(cfg),
		tvRoot:  cfg.TVLibraryDir(),
		refresh: refresh,
		logger:  logging.NewComponentLogger(logger, "organizer"),
	}
}

// NewWithService builds an Organizer around an explicit library service.
func NewWithService(library jellyfin.Service, tvRoot string, logger *slog.Logger) *Organizer {
	return &Organizer{
		library: library,
		tvRoot:  tvRoot,
		refresh: true,
		logger:  logging.NewComponentLogger(logger, "organizer"),
	}
}

// Process imports one media file. The boolean reports whether the file landed
// in the library; failures return an error wrapping ErrPostProcessingFailed.
func (o *Organizer) Process(ctx context.Context, path, jobName string, episodes []jobs.Episode) (bool, error) {
	logger := logging.WithContext(ctx, o.logger)
	targetDir := TargetDir(o.tvRoot, path, jobName, episodes)

	finalPath, err := o.library.Place(ctx, path, targetDir, filepath.Base(path))
	if err != nil {
		if isLibraryUnavailable(err) {
			err = services.Wrap(services.ErrTransient, "organizer", "place", "library unavailable", err)
		}
		return false, fmt.Errorf("%w: %s: %w", ErrPostProcessingFailed, filepath.Base(path), err)
	}
	logger.Info("imported into library",
		logging.String(logging.FieldEventType, "library_import"),
		logging.String("source", path),
		logging.String("target", finalPath),
	)

	if o.refresh {
		if err := o.library.Refresh(ctx); err != nil {
			logging.WarnWithContext(logger, "jellyfin refresh failed", "jellyfin_refresh_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new episode appears after the next scheduled scan"),
				logging.String(logging.FieldErrorHint, "check jellyfin.url and jellyfin.api_key"),
			)
		}
	}
	return true, nil
}
