package organizer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"

	"showseed/internal/config"
	"showseed/internal/jobs"
	"showseed/internal/textutil"
)

// TargetDir picks the library folder for one imported file.
func TargetDir(tvRoot, path, jobName string, episodes []jobs.Episode) string {
	if show, season, ok := singleShow(episodes); ok {
		return filepath.Join(tvRoot, show, fmt.Sprintf("Season %02d", season))
	}
	name := jobName
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	title := textutil.ReleaseTitle(name)
	if title == "" {
		title = "Unsorted"
	}
	return filepath.Join(tvRoot, title)
}

// singleShow reports the show folder and season when every episode belongs
// to one named show and season.
func singleShow(episodes []jobs.Episode) (string, int, bool) {
	if len(episodes) == 0 {
		return "", 0, false
	}
	first := episodes[0]
	for _, ep := range episodes[1:] {
		if ep.ShowID != first.ShowID || ep.Season != first.Season {
			return "", 0, false
		}
	}
	name := textutil.SanitizeFileName(first.ShowName)
	if name == "" {
		return "", 0, false
	}
	return name, first.Season, true
}

// shouldRefreshJellyfin checks whether Jellyfin refresh is allowed and returns the reason.
func shouldRefreshJellyfin(cfg *config.Config) (bool, string) {
	if cfg == nil {
		return false, "config_unavailable"
	}
	if !cfg.Jellyfin.Enabled {
		return false, "disabled"
	}
	if strings.TrimSpace(cfg.Jellyfin.URL) == "" || strings.TrimSpace(cfg.Jellyfin.APIKey) == "" {
		return false, "missing_credentials"
	}
	return true, "configured"
}

var libraryUnavailableErrors = []error{
	syscall.ENODEV,
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EIO,
	syscall.ESTALE,
}

// isLibraryUnavailable reports errors that mean the library mount is gone.
func isLibraryUnavailable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range libraryUnavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
