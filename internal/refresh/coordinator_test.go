package refresh_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicerack/internal/config"
	"voicerack/internal/refresh"
	"voicerack/internal/services"
)

type fakeRegistry struct {
	instances []refresh.Instance
	listErr   error
	failing   map[string]error
	reloaded  []refresh.Instance
	slow      map[string]bool
}

func (f *fakeRegistry) ListInstances(ctx context.Context, providerRef string) ([]refresh.Instance, error) {
	return f.instances, f.listErr
}

func (f *fakeRegistry) ReloadVoices(ctx context.Context, instance refresh.Instance) error {
	if f.slow[instance.BusName] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err, ok := f.failing[instance.BusName]; ok {
		return err
	}
	f.reloaded = append(f.reloaded, instance)
	return nil
}

func newCoordinator(registry refresh.Registry) *refresh.Coordinator {
	cfg := config.Default()
	cfg.Refresh.AckTimeout = 1
	return refresh.NewCoordinator(&cfg, registry, nil)
}

func TestRefreshZeroInstancesIsSuccess(t *testing.T) {
	registry := &fakeRegistry{}
	coordinator := newCoordinator(registry)

	result, err := coordinator.Refresh(context.Background(), "org.example.Speech.Provider")
	if err != nil {
		t.Fatalf("expected success with zero instances, got %v", err)
	}
	if len(result.Instances) != 0 || len(result.Unreachable) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRefreshReloadsEveryInstance(t *testing.T) {
	registry := &fakeRegistry{instances: []refresh.Instance{
		{BusName: "org.example.Speech.Provider", PID: 100},
	}}
	coordinator := newCoordinator(registry)

	result, err := coordinator.Refresh(context.Background(), "org.example.Speech.Provider")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(registry.reloaded) != 1 || registry.reloaded[0].PID != 100 {
		t.Fatalf("expected reload of pid 100, got %+v", registry.reloaded)
	}
	if len(result.Unreachable) != 0 {
		t.Fatalf("unexpected unreachable: %+v", result.Unreachable)
	}
}

func TestRefreshPartialFailureListsUnreachable(t *testing.T) {
	registry := &fakeRegistry{
		instances: []refresh.Instance{
			{BusName: "a", PID: 1},
			{BusName: "b", PID: 2},
		},
		failing: map[string]error{"b": errors.New("no reply")},
	}
	coordinator := newCoordinator(registry)

	result, err := coordinator.Refresh(context.Background(), "org.example.Speech.Provider")
	if !errors.Is(err, services.ErrRefreshPartial) {
		t.Fatalf("expected partial failure marker, got %v", err)
	}
	if len(result.Unreachable) != 1 || result.Unreachable[0].BusName != "b" {
		t.Fatalf("unexpected unreachable list: %+v", result.Unreachable)
	}
	if len(registry.reloaded) != 1 || registry.reloaded[0].BusName != "a" {
		t.Fatalf("reachable instance should still reload: %+v", registry.reloaded)
	}
}

func TestRefreshBoundsAcknowledgmentWait(t *testing.T) {
	registry := &fakeRegistry{
		instances: []refresh.Instance{{BusName: "slow", PID: 3}},
		slow:      map[string]bool{"slow": true},
	}
	coordinator := newCoordinator(registry)

	start := time.Now()
	_, err := coordinator.Refresh(context.Background(), "org.example.Speech.Provider")
	if !errors.Is(err, services.ErrRefreshPartial) {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("ack wait not bounded, took %s", elapsed)
	}
}

func TestRefreshRequiresProviderRef(t *testing.T) {
	coordinator := newCoordinator(&fakeRegistry{})
	_, err := coordinator.Refresh(context.Background(), "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
