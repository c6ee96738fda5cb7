// Package store holds the in-memory installation state for every voice in
// the catalog: identity, current status, in-flight phase, and advisory
// progress. State is rebuilt from the bundle manager on every run; mutations
// flow only through the install orchestrator and fan out as change events.
package store
