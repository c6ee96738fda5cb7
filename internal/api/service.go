package api

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"voicerack/internal/catalog"
	"voicerack/internal/logging"
	"voicerack/internal/notifications"
	"voicerack/internal/refresh"
	"voicerack/internal/services"
	"voicerack/internal/store"
)

// CatalogFetcher produces a fresh catalog snapshot from the remotes.
type CatalogFetcher interface {
	Fetch(ctx context.Context) (*catalog.Snapshot, error)
}

// InstalledLister reports the bundle refs currently installed.
type InstalledLister interface {
	InstalledRefs(ctx context.Context) (map[string]struct{}, error)
}

// Installs is the asynchronous operation surface of the install core.
type Installs interface {
	RequestInstall(ctx context.Context, ref string) (string, error)
	CancelInstall(ctx context.Context, ref string) error
	RequestUninstall(ctx context.Context, ref string) (string, error)
	Wait(ctx context.Context, ref string) error
}

// ProviderRefresher signals running providers to reload their voices.
type ProviderRefresher interface {
	Refresh(ctx context.Context, providerRef string) (refresh.Result, error)
}

// Service is the orchestration facade consumed by the CLI. It owns catalog
// population and exposes voice queries, operations, and the change feed.
type Service struct {
	store     *store.Store
	fetcher   CatalogFetcher
	lister    InstalledLister
	installs  Installs
	refresher ProviderRefresher
	notifier  notifications.Service
	logger    *slog.Logger
}

// NewService wires the facade.
func NewService(st *store.Store, fetcher CatalogFetcher, lister InstalledLister, installs Installs, refresher ProviderRefresher, notifier notifications.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:     st,
		fetcher:   fetcher,
		lister:    lister,
		installs:  installs,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger.With(logging.String(logging.FieldComponent, "api")),
	}
}

// RefreshCatalog fetches the remote catalog, queries the installed bundle
// set, and repopulates the store. The previous state is discarded entirely;
// the bundle manager is the sole source of installed truth.
func (s *Service) RefreshCatalog(ctx context.Context) (CatalogSummary, error) {
	snapshot, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.notifyCatalogFailure(err)
		return CatalogSummary{}, err
	}

	installed, err := s.lister.InstalledRefs(ctx)
	if err != nil {
		return CatalogSummary{}, services.Wrap(services.ErrExternalTool, "api", "list installed", "", err)
	}
	if err := s.store.Replace(ctx, snapshot, installed); err != nil {
		return CatalogSummary{}, services.Wrap(services.ErrTransient, "api", "populate store", "", err)
	}

	summary := CatalogSummary{
		Voices:    len(snapshot.Voices),
		Providers: len(snapshot.Providers),
	}
	for _, voice := range snapshot.Voices {
		if store.InitialStatus(voice, installed) == store.StatusInstalled {
			summary.Installed++
		}
	}
	s.logger.Info("catalog refreshed",
		logging.Int("voices", summary.Voices),
		logging.Int("providers", summary.Providers),
		logging.Int("installed", summary.Installed))
	return summary, nil
}

// Voices lists every known voice, ordered by name.
func (s *Service) Voices(ctx context.Context) ([]Voice, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromStoreItems(items), nil
}

// Providers summarizes the known providers and their install state.
func (s *Service) Providers(ctx context.Context) ([]Provider, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	installed, err := s.lister.InstalledRefs(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "api", "list installed", "", err)
	}

	byRef := make(map[string]*Provider)
	var order []string
	for _, item := range items {
		provider, ok := byRef[item.ProviderRef]
		if !ok {
			_, isInstalled := installed[item.ProviderRef]
			provider = &Provider{
				Ref:       item.ProviderRef,
				Name:      item.ProviderName,
				Installed: isInstalled,
			}
			byRef[item.ProviderRef] = provider
			order = append(order, item.ProviderRef)
		}
		provider.Voices++
		if item.Status == store.StatusInstalled {
			provider.InstalledVoices++
		}
	}

	sort.Strings(order)
	providers := make([]Provider, 0, len(order))
	for _, ref := range order {
		providers = append(providers, *byRef[ref])
	}
	return providers, nil
}

// Describe returns the current state of one voice.
func (s *Service) Describe(ctx context.Context, ref string) (Voice, error) {
	item, err := s.store.Get(ctx, strings.TrimSpace(ref))
	if err != nil {
		return Voice{}, err
	}
	return FromStoreItem(item), nil
}

// Install starts an asynchronous voice install and returns its handle.
func (s *Service) Install(ctx context.Context, ref string) (string, error) {
	return s.installs.RequestInstall(ctx, ref)
}

// CancelInstall requests cancellation of an in-flight install.
func (s *Service) CancelInstall(ctx context.Context, ref string) error {
	return s.installs.CancelInstall(ctx, ref)
}

// Uninstall starts an asynchronous removal of the voice bundle.
func (s *Service) Uninstall(ctx context.Context, ref string) (string, error) {
	return s.installs.RequestUninstall(ctx, ref)
}

// Await blocks until no operation is in flight for the voice.
func (s *Service) Await(ctx context.Context, ref string) error {
	return s.installs.Wait(ctx, ref)
}

// Events returns state-change events newer than the given sequence. With
// wait set, the call blocks until an event arrives or the context ends.
func (s *Service) Events(ctx context.Context, since uint64, limit int, wait bool) ([]store.ChangeEvent, uint64, error) {
	return s.store.Hub().Fetch(ctx, since, limit, wait)
}

// RefreshProvider explicitly reloads a provider's running instances.
func (s *Service) RefreshProvider(ctx context.Context, providerRef string) (RefreshOutcome, error) {
	result, err := s.refresher.Refresh(ctx, providerRef)
	outcome := RefreshOutcome{
		Provider: strings.TrimSpace(providerRef),
		Reached:  len(result.Instances) - len(result.Unreachable),
	}
	for _, instance := range result.Unreachable {
		outcome.Unreachable = append(outcome.Unreachable, instance.BusName)
	}
	return outcome, err
}

func (s *Service) notifyCatalogFailure(err error) {
	if s.notifier == nil {
		return
	}
	payload := notifications.Payload{}
	if err != nil {
		payload["error"] = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if notifyErr := s.notifier.Publish(ctx, notifications.EventCatalogUnavailable, payload); notifyErr != nil {
		s.logger.Warn("notification not delivered", logging.Error(notifyErr))
	}
}
