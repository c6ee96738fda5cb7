package testsupport

import (
	"path/filepath"
	"testing"

	"voicerack/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockDir = filepath.Join(base, "locks")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithNtfyTopic points notifications at the given endpoint with every event
// class enabled.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
		cfg.Notifications.Install = true
		cfg.Notifications.Uninstall = true
		cfg.Notifications.Errors = true
	}
}

// WithAckTimeout sets the provider refresh acknowledgment timeout in seconds.
func WithAckTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Refresh.AckTimeout = seconds
	}
}
