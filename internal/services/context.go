package services

import "context"

type contextKey string

const (
	voiceRefKey    contextKey = "voice_ref"
	providerRefKey contextKey = "provider_ref"
	phaseKey       contextKey = "phase"
	operationIDKey contextKey = "operation_id"
)

// WithVoiceRef annotates context with a voice bundle reference.
func WithVoiceRef(ctx context.Context, ref string) context.Context {
	if ref == "" {
		return ctx
	}
	return context.WithValue(ctx, voiceRefKey, ref)
}

// VoiceRefFromContext extracts the voice bundle reference if present.
func VoiceRefFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(voiceRefKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithProviderRef annotates context with a provider bundle reference.
func WithProviderRef(ctx context.Context, ref string) context.Context {
	if ref == "" {
		return ctx
	}
	return context.WithValue(ctx, providerRefKey, ref)
}

// ProviderRefFromContext extracts the provider bundle reference if present.
func ProviderRefFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(providerRefKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the current install phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the install phase if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperationID annotates context with the install operation handle.
func WithOperationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, operationIDKey, id)
}

// OperationIDFromContext extracts the install operation handle if present.
func OperationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
