package engine

import (
	"log/slog"

	"showseed/internal/config"
)

// SettingsFromConfig maps the [torrent] section onto engine settings.
func SettingsFromConfig(cfg *config.Config, logger *slog.Logger) Settings {
	return Settings{
		SavePath:          cfg.DataDir(),
		ListenPortMin:     cfg.Torrent.ListenPortMin,
		ListenPortMax:     cfg.Torrent.ListenPortMax,
		DownloadRateLimit: BytesPerSecond(cfg.Torrent.MaxDownloadKBps),
		UploadRateLimit:   BytesPerSecond(cfg.Torrent.MaxUploadKBps),
		UserAgent:         cfg.Torrent.UserAgent,
		AlertMask:         DefaultAlertMask,
		Logger:            logger,
	}
}
