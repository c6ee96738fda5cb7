// Package main hosts the voicerack CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces the voice catalog, install and
// removal operations, provider refresh, and configuration scaffolding. It
// centralizes configuration resolution and service wiring so subcommands can
// focus on user experience instead of plumbing.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
