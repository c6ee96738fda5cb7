package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
	"voicerack/internal/catalog"
	"voicerack/internal/config"
	"voicerack/internal/installer"
	"voicerack/internal/logging"
	"voicerack/internal/notifications"
	"voicerack/internal/refresh"
	"voicerack/internal/services/flatpak"
	"voicerack/internal/store"
)

// commandContext lazily builds the shared configuration and service stack.
// The catalog is fetched at most once per invocation; every command sees the
// same snapshot.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	serviceOnce sync.Once
	service     *api.Service
	installer   *installer.Installer
	logger      *slog.Logger
	serviceErr  error

	catalogOnce sync.Once
	catalogErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureService() (*api.Service, error) {
	c.serviceOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.serviceErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.serviceErr = err
			return
		}
		c.logger = logger

		client, err := flatpak.New(cfg)
		if err != nil {
			c.serviceErr = err
			return
		}
		fetcher := catalog.NewFetcher(cfg, client, logger)

		st, err := store.Open(store.NewHub(256))
		if err != nil {
			c.serviceErr = err
			return
		}

		var registry refresh.Registry
		if busRegistry, err := refresh.NewBusRegistry(); err != nil {
			logger.Warn("session bus unavailable, provider refresh disabled", logging.Error(err))
		} else {
			registry = busRegistry
		}
		coordinator := refresh.NewCoordinator(cfg, registry, logger)

		notifier := notifications.NewService(cfg)
		c.installer = installer.New(cfg, st, client, coordinator, notifier, logger)
		c.service = api.NewService(st, fetcher, client, c.installer, coordinator, notifier, logger)
	})
	return c.service, c.serviceErr
}

// withCatalog hands the command a service whose store is populated from the
// remotes.
func (c *commandContext) withCatalog(cmd *cobra.Command, fn func(context.Context, *api.Service) error) error {
	svc, err := c.ensureService()
	if err != nil {
		return err
	}
	c.catalogOnce.Do(func() {
		_, c.catalogErr = svc.RefreshCatalog(cmd.Context())
	})
	if c.catalogErr != nil {
		return c.catalogErr
	}
	return fn(cmd.Context(), svc)
}

// withService hands the command the service without touching the catalog.
func (c *commandContext) withService(cmd *cobra.Command, fn func(context.Context, *api.Service) error) error {
	svc, err := c.ensureService()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), svc)
}
