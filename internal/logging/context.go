package logging

import (
	"context"
	"log/slog"

	"voicerack/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldVoice is the standardized structured logging key for voice bundle references.
	FieldVoice = "voice"
	// FieldProvider is the standardized structured logging key for provider bundle references.
	FieldProvider = "provider"
	// FieldPhase is the standardized structured logging key for install phases.
	FieldPhase = "phase"
	// FieldOperationID is the standardized structured logging key for install operation handles.
	FieldOperationID = "operation_id"
	// FieldEventType marks lifecycle events in structured logs.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if ref, ok := services.VoiceRefFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldVoice, ref))
	}
	if ref, ok := services.ProviderRefFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProvider, ref))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if id, ok := services.OperationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
