package store_test

import (
	"context"
	"errors"
	"testing"

	"voicerack/internal/catalog"
	"voicerack/internal/store"
)

func testSnapshot() *catalog.Snapshot {
	return &catalog.Snapshot{
		Voices: []catalog.VoiceEntry{
			{
				Ref:           "org.example.Speech.Provider.Voice.en",
				Name:          "English Sample",
				Languages:     []string{"en-US"},
				LanguageNames: []string{"American English"},
				ProviderRef:   "org.example.Speech.Provider",
				ProviderName:  "Example Provider",
				DownloadSize:  1024,
				Remote:        "voices",
			},
			{
				Ref:          "org.example.Speech.Provider.Voice.fr",
				Name:         "French Sample",
				ProviderRef:  "org.example.Speech.Provider",
				ProviderName: "Example Provider",
				Remote:       "voices",
			},
		},
		Providers: []catalog.ProviderEntry{
			{Ref: "org.example.Speech.Provider", Name: "Example Provider"},
		},
	}
}

func openStore(t *testing.T, hub *store.Hub) *store.Store {
	t.Helper()
	st, err := store.Open(hub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestReplaceDerivesInitialStatuses(t *testing.T) {
	st := openStore(t, nil)
	ctx := context.Background()

	installed := map[string]struct{}{
		"org.example.Speech.Provider":          {},
		"org.example.Speech.Provider.Voice.en": {},
	}
	if err := st.Replace(ctx, testSnapshot(), installed); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	en, err := st.Get(ctx, "org.example.Speech.Provider.Voice.en")
	if err != nil {
		t.Fatalf("Get en: %v", err)
	}
	if en.Status != store.StatusInstalled {
		t.Fatalf("en status = %s, want installed", en.Status)
	}
	if len(en.LanguageNames) != 1 || en.LanguageNames[0] != "American English" {
		t.Fatalf("language names lost: %v", en.LanguageNames)
	}

	fr, err := st.Get(ctx, "org.example.Speech.Provider.Voice.fr")
	if err != nil {
		t.Fatalf("Get fr: %v", err)
	}
	if fr.Status != store.StatusProviderOnly {
		t.Fatalf("fr status = %s, want provider_only", fr.Status)
	}

	if err := st.Replace(ctx, testSnapshot(), nil); err != nil {
		t.Fatalf("Replace empty: %v", err)
	}
	fr, _ = st.Get(ctx, "org.example.Speech.Provider.Voice.fr")
	if fr.Status != store.StatusUnavailable {
		t.Fatalf("fr status after refetch = %s, want unavailable", fr.Status)
	}
}

func TestGetUnknownRefReturnsNotFound(t *testing.T) {
	st := openStore(t, nil)
	_, err := st.Get(context.Background(), "org.example.Missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOperationLifecyclePublishesEvents(t *testing.T) {
	hub := store.NewHub(16)
	st := openStore(t, hub)
	ctx := context.Background()
	ref := "org.example.Speech.Provider.Voice.fr"

	if err := st.Replace(ctx, testSnapshot(), nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	item, err := st.BeginOperation(ctx, ref, store.StatusInstalling, store.PhaseResolving, "op-1")
	if err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}
	if item.Status != store.StatusInstalling || item.Phase != store.PhaseResolving || item.OperationID != "op-1" {
		t.Fatalf("unexpected item after begin: %+v", item)
	}

	if err := st.SetPhase(ctx, ref, store.PhaseInstallingVoice); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	if err := st.SetProgress(ctx, ref, 42.5, "Installing 1/1… 42%"); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if err := st.FinishOperation(ctx, ref, store.StatusInstalled); err != nil {
		t.Fatalf("FinishOperation: %v", err)
	}

	events, _, err := hub.Fetch(ctx, 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	wantPhases := []store.Phase{store.PhaseResolving, store.PhaseInstallingVoice, store.PhaseInstallingVoice, ""}
	wantStatuses := []store.Status{store.StatusInstalling, store.StatusInstalling, store.StatusInstalling, store.StatusInstalled}
	for i, evt := range events {
		if evt.Status != wantStatuses[i] || evt.Phase != wantPhases[i] {
			t.Fatalf("event %d = %+v, want status %s phase %q", i, evt, wantStatuses[i], wantPhases[i])
		}
	}
	if events[2].Percent != 42.5 {
		t.Fatalf("progress event percent = %v", events[2].Percent)
	}

	final, _ := st.Get(ctx, ref)
	if final.OperationID != "" || final.Phase != "" {
		t.Fatalf("operation bookkeeping not cleared: %+v", final)
	}
}

func TestBeginOperationRejectsIllegalTransition(t *testing.T) {
	st := openStore(t, nil)
	ctx := context.Background()
	if err := st.Replace(ctx, testSnapshot(), map[string]struct{}{
		"org.example.Speech.Provider":          {},
		"org.example.Speech.Provider.Voice.en": {},
	}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	_, err := st.BeginOperation(ctx, "org.example.Speech.Provider.Voice.en", store.StatusInstalling, store.PhaseResolving, "op-1")
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestFailRecordsReason(t *testing.T) {
	st := openStore(t, nil)
	ctx := context.Background()
	ref := "org.example.Speech.Provider.Voice.fr"
	if err := st.Replace(ctx, testSnapshot(), nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := st.BeginOperation(ctx, ref, store.StatusInstalling, store.PhaseResolving, "op-1"); err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}
	if err := st.Fail(ctx, ref, store.ReasonProviderInstallFailed, "network unreachable"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	item, _ := st.Get(ctx, ref)
	if item.Status != store.StatusFailed || item.FailureReason != store.ReasonProviderInstallFailed {
		t.Fatalf("unexpected failed item: %+v", item)
	}
	if item.ErrorMessage != "network unreachable" {
		t.Fatalf("unexpected error message: %q", item.ErrorMessage)
	}

	// A failed voice may be retried.
	if _, err := st.BeginOperation(ctx, ref, store.StatusInstalling, store.PhaseResolving, "op-2"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestListFiltersByStatusAndProvider(t *testing.T) {
	st := openStore(t, nil)
	ctx := context.Background()
	if err := st.Replace(ctx, testSnapshot(), map[string]struct{}{
		"org.example.Speech.Provider": {},
	}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	all, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}

	providerOnly, err := st.List(ctx, store.StatusProviderOnly)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(providerOnly) != 2 {
		t.Fatalf("expected both provider_only, got %d", len(providerOnly))
	}

	byProvider, err := st.ListByProvider(ctx, "org.example.Speech.Provider")
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if len(byProvider) != 2 {
		t.Fatalf("expected 2 provider voices, got %d", len(byProvider))
	}
}
