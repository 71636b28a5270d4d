package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTorrent()
	c.normalizeJellyfin()
	c.normalizeNotifications()
	c.normalizeAPI()
	c.normalizeShows()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkingDir) == "" {
		c.Paths.WorkingDir = defaultWorkingDir
	}
	if c.Paths.WorkingDir, err = expandPath(c.Paths.WorkingDir); err != nil {
		return fmt.Errorf("paths.working_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Library.TVDir = strings.Trim(strings.TrimSpace(c.Library.TVDir), "/")
	return nil
}

func (c *Config) normalizeTorrent() {
	if c.Torrent.MaxDownloadKBps < 0 {
		c.Torrent.MaxDownloadKBps = 0
	}
	if c.Torrent.MaxUploadKBps < 0 {
		c.Torrent.MaxUploadKBps = 0
	}
	if c.Torrent.StartPollIntervalMS <= 0 {
		c.Torrent.StartPollIntervalMS = defaultStartPollIntervalMS
	}
	if c.Torrent.MaxConnections == 0 {
		c.Torrent.MaxConnections = defaultMaxConnections
	}
	c.Torrent.UserAgent = strings.TrimSpace(c.Torrent.UserAgent)
	if c.Torrent.UserAgent == "" {
		c.Torrent.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeJellyfin() {
	if c.Jellyfin.APIKey == "" {
		if value, ok := os.LookupEnv("JELLYFIN_API_KEY"); ok {
			c.Jellyfin.APIKey = strings.TrimSpace(value)
		}
	}
	c.Jellyfin.URL = strings.TrimRight(strings.TrimSpace(c.Jellyfin.URL), "/")
	c.Jellyfin.APIKey = strings.TrimSpace(c.Jellyfin.APIKey)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SHOWSEED_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("SHOWSEED_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeShows() {
	for i := range c.Shows {
		c.Shows[i].Name = strings.TrimSpace(c.Shows[i].Name)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
