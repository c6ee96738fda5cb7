// Package installer runs voice install and removal operations. Requests
// return an operation handle immediately; the work happens on a background
// goroutine with two phases, provider first and voice second, and state
// changes stream through the store's change feed. A keyed in-flight registry
// plus per-ref advisory file locks keep concurrent operations on the same
// bundle from ever running twice.
package installer
