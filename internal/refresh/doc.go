// Package refresh tells running speech providers that their voice registry
// changed, so dependent applications see newly installed voices without a
// restart. Discovery and signalling go through a small Registry capability
// so tests run without a session bus.
package refresh
