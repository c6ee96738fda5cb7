package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"voicerack/internal/config"
	"voicerack/internal/logging"
	"voicerack/internal/services"
	"voicerack/internal/services/flatpak"
)

// Index supplies the remote component index the fetcher works from.
type Index interface {
	RemoteIndex(ctx context.Context) ([]flatpak.Component, error)
}

// Fetcher builds voice catalogs from the bundle manager's remote index.
type Fetcher struct {
	index  Index
	marker string
	logger *slog.Logger
}

// NewFetcher constructs a catalog fetcher.
func NewFetcher(cfg *config.Config, index Index, logger *slog.Logger) *Fetcher {
	marker := ""
	if cfg != nil {
		marker = cfg.Catalog.VoiceIDMarker
	}
	if marker == "" {
		marker = "Speech.Provider.Voice"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{index: index, marker: marker, logger: logger.With(logging.String(logging.FieldComponent, "catalog"))}
}

// Fetch queries the remote index and returns the installable voices with
// their provider linkage. Any index failure yields zero entries, never a
// partial or stale set.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	components, err := f.index.RemoteIndex(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalogUnavailable, "catalog", "fetch remote index", "", err)
	}

	byID := make(map[string]flatpak.Component, len(components))
	for _, component := range components {
		byID[component.ID] = component
	}

	var voices []VoiceEntry
	providerSeen := make(map[string]ProviderEntry)
	for _, component := range components {
		if !strings.Contains(component.ID, f.marker) || len(component.Extends) != 1 {
			continue
		}
		provider, ok := byID[component.Extends[0]]
		if !ok {
			f.logger.Warn("voice extends unknown provider",
				logging.String(logging.FieldVoice, component.ID),
				logging.String(logging.FieldProvider, component.Extends[0]))
			continue
		}

		voices = append(voices, VoiceEntry{
			Ref:           component.ID,
			Name:          component.Name,
			Summary:       component.Summary,
			Remote:        component.Remote,
			Languages:     append([]string(nil), component.Languages...),
			LanguageNames: DisplayNames(component.Languages),
			ProviderRef:   provider.ID,
			ProviderName:  provider.Name,
			DownloadSize:  component.DownloadSize,
		})
		providerSeen[provider.ID] = ProviderEntry{Ref: provider.ID, Name: provider.Name}
	}

	sort.Slice(voices, func(i, j int) bool {
		if voices[i].Name != voices[j].Name {
			return voices[i].Name < voices[j].Name
		}
		return voices[i].Ref < voices[j].Ref
	})

	providers := make([]ProviderEntry, 0, len(providerSeen))
	for _, provider := range providerSeen {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Ref < providers[j].Ref })

	f.logger.Info("catalog fetched",
		logging.Int("voices", len(voices)),
		logging.Int("providers", len(providers)))

	return &Snapshot{Voices: voices, Providers: providers}, nil
}
