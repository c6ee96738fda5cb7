package services_test

import (
	"errors"
	"strings"
	"testing"

	"voicerack/internal/services"
)

func TestWrapTagsMarkerAndKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := services.Wrap(services.ErrProviderInstall, "installer", "install provider", "org.example.tts", cause)

	if !errors.Is(err, services.ErrProviderInstall) {
		t.Fatalf("expected provider install marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	for _, want := range []string{"installer", "install provider", "org.example.tts", "connection refused"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestWrapDefaultsToTransientMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
