// Package api is the orchestration facade between the CLI and the install
// core. It converts internal store rows into transport-friendly DTOs and
// exposes catalog population, voice queries, install operations, and the
// state-change feed behind small capability interfaces.
package api
