package catalog_test

import (
	"context"
	"errors"
	"testing"

	"voicerack/internal/catalog"
	"voicerack/internal/config"
	"voicerack/internal/services"
	"voicerack/internal/services/flatpak"
)

type fakeIndex struct {
	components []flatpak.Component
	err        error
}

func (f *fakeIndex) RemoteIndex(ctx context.Context) ([]flatpak.Component, error) {
	return f.components, f.err
}

func testComponents() []flatpak.Component {
	return []flatpak.Component{
		{
			ID:           "org.example.Speech.Provider.Voice.en",
			Name:         "English Sample",
			Extends:      []string{"org.example.Speech.Provider"},
			Languages:    []string{"en-US"},
			DownloadSize: 1024,
			Remote:       "voices",
		},
		{
			ID:        "org.example.Speech.Provider.Voice.fr",
			Name:      "French Sample",
			Extends:   []string{"org.example.Speech.Provider"},
			Languages: []string{"fr"},
			Remote:    "voices",
		},
		{
			ID:     "org.example.Speech.Provider",
			Name:   "Example Provider",
			Remote: "voices",
		},
		{
			ID:      "org.example.OtherApp",
			Name:    "Unrelated",
			Extends: []string{"org.example.Speech.Provider"},
			Remote:  "voices",
		},
		{
			ID:      "org.example.Speech.Provider.Voice.orphan",
			Name:    "Orphan Voice",
			Extends: []string{"org.missing.Provider"},
			Remote:  "voices",
		},
	}
}

func newFetcher(index catalog.Index) *catalog.Fetcher {
	cfg := config.Default()
	return catalog.NewFetcher(&cfg, index, nil)
}

func TestFetchSelectsVoicesWithProviderLinkage(t *testing.T) {
	fetcher := newFetcher(&fakeIndex{components: testComponents()})

	snapshot, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(snapshot.Voices) != 2 {
		t.Fatalf("expected 2 voices, got %+v", snapshot.Voices)
	}
	if snapshot.Voices[0].Name != "English Sample" || snapshot.Voices[1].Name != "French Sample" {
		t.Fatalf("voices not sorted by name: %+v", snapshot.Voices)
	}

	en := snapshot.Voices[0]
	if en.ProviderRef != "org.example.Speech.Provider" || en.ProviderName != "Example Provider" {
		t.Fatalf("unexpected provider linkage: %+v", en)
	}
	if len(en.LanguageNames) != 1 || en.LanguageNames[0] != "American English" {
		t.Fatalf("unexpected language names: %v", en.LanguageNames)
	}
	if en.DownloadSize != 1024 || en.Remote != "voices" {
		t.Fatalf("unexpected voice metadata: %+v", en)
	}

	if len(snapshot.Providers) != 1 || snapshot.Providers[0].Ref != "org.example.Speech.Provider" {
		t.Fatalf("expected one deduplicated provider, got %+v", snapshot.Providers)
	}
}

func TestFetchFailsWithCatalogUnavailable(t *testing.T) {
	fetcher := newFetcher(&fakeIndex{err: errors.New("no network")})

	snapshot, err := fetcher.Fetch(context.Background())
	if !errors.Is(err, services.ErrCatalogUnavailable) {
		t.Fatalf("expected catalog unavailable marker, got %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected no entries on failure, got %+v", snapshot)
	}
}

func TestSnapshotVoiceLookup(t *testing.T) {
	fetcher := newFetcher(&fakeIndex{components: testComponents()})
	snapshot, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if _, ok := snapshot.Voice("org.example.Speech.Provider.Voice.fr"); !ok {
		t.Fatal("expected fr voice present")
	}
	if _, ok := snapshot.Voice("org.example.OtherApp"); ok {
		t.Fatal("non-voice component should not resolve")
	}
}
