package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTorrent(); err != nil {
		return err
	}
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateShows(); err != nil {
		return err
	}
	return c.validateAPI()
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkingDir) == "" {
		return errors.New("paths.working_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/showseed/config.toml"
		}
		return fmt.Errorf("paths.library_dir is required. Edit %s (create with 'showseed config init')", defaultPath)
	}
	if c.Library.TVDir == "" {
		return errors.New("library.tv_dir must be set")
	}
	return nil
}

func (c *Config) validateTorrent() error {
	t := c.Torrent
	if t.SeedRatio < 0 {
		return errors.New("torrent.seed_ratio must be >= 0")
	}
	if t.ListenPortMin <= 0 || t.ListenPortMin > 65535 {
		return errors.New("torrent.listen_port_min must be between 1 and 65535")
	}
	if t.ListenPortMax < t.ListenPortMin || t.ListenPortMax > 65535 {
		return errors.New("torrent.listen_port_max must be between listen_port_min and 65535")
	}
	if t.MaxConnections < -1 {
		return errors.New("torrent.max_connections must be -1 (unlimited) or positive")
	}
	return ensurePositiveMap(map[string]int{
		"torrent.start_timeout":          t.StartTimeout,
		"torrent.start_poll_interval_ms": t.StartPollIntervalMS,
	})
}

func (c *Config) validateJellyfin() error {
	if !c.Jellyfin.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Jellyfin.URL) == "" {
		return errors.New("jellyfin.url must be set when jellyfin.enabled is true")
	}
	if strings.TrimSpace(c.Jellyfin.APIKey) == "" {
		return errors.New("jellyfin.api_key must be set when jellyfin.enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.status_log_interval":  c.Workflow.StatusLogInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateShows() error {
	seen := make(map[int]struct{}, len(c.Shows))
	for i, show := range c.Shows {
		if show.ID <= 0 {
			return fmt.Errorf("shows[%d].id must be positive", i)
		}
		if show.Name == "" {
			return fmt.Errorf("shows[%d].name must be set", i)
		}
		if _, dup := seen[show.ID]; dup {
			return fmt.Errorf("shows[%d].id %d is listed more than once", i, show.ID)
		}
		seen[show.ID] = struct{}{}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
