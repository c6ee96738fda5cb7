package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voicerack/internal/config"
	"voicerack/internal/logging"
	"voicerack/internal/services"
)

// Instance identifies one running provider process.
type Instance struct {
	BusName string
	PID     int
}

// Registry abstracts the live service registry and the reload control
// channel so tests can fake both without a running provider.
type Registry interface {
	ListInstances(ctx context.Context, providerRef string) ([]Instance, error)
	ReloadVoices(ctx context.Context, instance Instance) error
}

// Result reports the outcome of one refresh pass.
type Result struct {
	Instances   []Instance
	Unreachable []Instance
}

// Coordinator signals running providers to reload their voice registries
// after a voice install or removal.
type Coordinator struct {
	registry Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCoordinator constructs a refresh coordinator.
func NewCoordinator(cfg *config.Config, registry Registry, logger *slog.Logger) *Coordinator {
	timeout := 5 * time.Second
	if cfg != nil && cfg.Refresh.AckTimeout > 0 {
		timeout = time.Duration(cfg.Refresh.AckTimeout) * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		registry: registry,
		timeout:  timeout,
		logger:   logger.With(logging.String(logging.FieldComponent, "refresh")),
	}
}

// Refresh discovers running instances of the provider and asks each to
// reload its voices, waiting a bounded time for acknowledgment. Zero running
// instances is a success; unreachable instances yield a partial-failure
// error that callers log but never treat as fatal to the voice install.
func (c *Coordinator) Refresh(ctx context.Context, providerRef string) (Result, error) {
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return Result{}, services.Wrap(services.ErrValidation, "refresh", "refresh provider", "provider ref required", nil)
	}
	if c.registry == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "refresh", "refresh provider", "no service registry", nil)
	}

	instances, err := c.registry.ListInstances(ctx, providerRef)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "refresh", "list instances", providerRef, err)
	}
	if len(instances) == 0 {
		c.logger.Debug("no running provider instances",
			logging.String(logging.FieldProvider, providerRef))
		return Result{}, nil
	}

	result := Result{Instances: instances}
	for _, instance := range instances {
		reloadCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.registry.ReloadVoices(reloadCtx, instance)
		cancel()
		if err != nil {
			c.logger.Warn("provider instance did not acknowledge reload",
				logging.String(logging.FieldProvider, providerRef),
				logging.String("bus_name", instance.BusName),
				logging.Int("pid", instance.PID),
				logging.Error(err))
			result.Unreachable = append(result.Unreachable, instance)
			continue
		}
		c.logger.Info("provider reloaded voices",
			logging.String(logging.FieldProvider, providerRef),
			logging.String("bus_name", instance.BusName))
	}

	if len(result.Unreachable) > 0 {
		return result, services.Wrap(services.ErrRefreshPartial, "refresh", "reload voices",
			fmt.Sprintf("%d of %d instances unreachable", len(result.Unreachable), len(result.Instances)), nil)
	}
	return result, nil
}
