package config

const (
	defaultLogDir            = "~/.local/share/voicerack/logs"
	defaultLockDir           = "~/.local/share/voicerack/locks"
	defaultVoiceIDMarker     = "Speech.Provider.Voice"
	defaultRefreshAckTimeout = 5
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			LockDir: defaultLockDir,
		},
		Flatpak: Flatpak{
			Binary:        "flatpak",
			Installations: []string{"system", "user"},
		},
		Catalog: Catalog{
			VoiceIDMarker: defaultVoiceIDMarker,
		},
		Refresh: Refresh{
			AckTimeout: defaultRefreshAckTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Install:        true,
			Uninstall:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
