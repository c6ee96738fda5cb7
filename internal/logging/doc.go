// Package logging builds the slog loggers used across voicerack, providing
// a human-friendly console handler, a JSON handler, and helpers for carrying
// standardized fields (voice, provider, phase, operation id) through context.
package logging
