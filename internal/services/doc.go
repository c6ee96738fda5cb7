// Package services holds cross-cutting helpers for external service clients:
// sentinel error markers with wrapping, and context annotations that flow
// standardized fields into structured logs.
package services
