// Package config loads, validates, and normalizes voicerack configuration
// from TOML files, applying repository defaults for any omitted values.
package config
