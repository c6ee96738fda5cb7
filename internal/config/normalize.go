package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFlatpak(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeRefresh()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFlatpak() error {
	c.Flatpak.Binary = strings.TrimSpace(c.Flatpak.Binary)
	c.Flatpak.Arch = strings.TrimSpace(c.Flatpak.Arch)

	installations := make([]string, 0, len(c.Flatpak.Installations))
	for _, inst := range c.Flatpak.Installations {
		inst = strings.ToLower(strings.TrimSpace(inst))
		if inst == "" {
			continue
		}
		installations = append(installations, inst)
	}
	if len(installations) == 0 {
		installations = []string{"system", "user"}
	}
	c.Flatpak.Installations = installations

	remotes := make([]string, 0, len(c.Flatpak.Remotes))
	for _, remote := range c.Flatpak.Remotes {
		remote = strings.TrimSpace(remote)
		if remote == "" {
			continue
		}
		remotes = append(remotes, remote)
	}
	c.Flatpak.Remotes = remotes

	var err error
	if c.Flatpak.SystemDir != "" {
		if c.Flatpak.SystemDir, err = expandPath(c.Flatpak.SystemDir); err != nil {
			return fmt.Errorf("flatpak.system_dir: %w", err)
		}
	}
	if c.Flatpak.UserDir != "" {
		if c.Flatpak.UserDir, err = expandPath(c.Flatpak.UserDir); err != nil {
			return fmt.Errorf("flatpak.user_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.VoiceIDMarker = strings.TrimSpace(c.Catalog.VoiceIDMarker)
	if c.Catalog.VoiceIDMarker == "" {
		c.Catalog.VoiceIDMarker = defaultVoiceIDMarker
	}
}

func (c *Config) normalizeRefresh() {
	if c.Refresh.AckTimeout <= 0 {
		c.Refresh.AckTimeout = defaultRefreshAckTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
