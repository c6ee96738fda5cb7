package installer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicerack/internal/catalog"
	"voicerack/internal/installer"
	"voicerack/internal/refresh"
	"voicerack/internal/services"
	"voicerack/internal/services/flatpak"
	"voicerack/internal/store"
	"voicerack/internal/testsupport"
)

const (
	voiceRef    = "org.example.Speech.Provider.Voice.en"
	altVoiceRef = "org.example.Speech.Provider.Voice.fr"
	providerRef = "org.example.Speech.Provider"
)

type fakeManager struct {
	mu          sync.Mutex
	installed   map[string]struct{}
	installErr  map[string]error
	started     map[string]chan struct{}
	gates       map[string]chan struct{}
	remotes     map[string]string
	installs    []string
	uninstalls  []string
	listErr     error
	listStarted chan struct{}
	listGate    chan struct{}
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		installed:  make(map[string]struct{}),
		installErr: make(map[string]error),
		started:    make(map[string]chan struct{}),
		gates:      make(map[string]chan struct{}),
		remotes:    make(map[string]string),
	}
}

func (m *fakeManager) RemoteIndex(ctx context.Context) ([]flatpak.Component, error) {
	return nil, nil
}

func (m *fakeManager) InstalledRefs(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	started := m.listStarted
	gate := m.listGate
	listErr := m.listErr
	m.listStarted = nil
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if listErr != nil {
		return nil, listErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make(map[string]struct{}, len(m.installed))
	for ref := range m.installed {
		refs[ref] = struct{}{}
	}
	return refs, nil
}

func (m *fakeManager) Install(ctx context.Context, remote, ref string, progress func(flatpak.ProgressUpdate)) error {
	m.mu.Lock()
	m.installs = append(m.installs, ref)
	m.remotes[ref] = remote
	started := m.started[ref]
	gate := m.gates[ref]
	err := m.installErr[ref]
	m.mu.Unlock()

	if started != nil {
		close(started)
		m.mu.Lock()
		delete(m.started, ref)
		m.mu.Unlock()
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.Lock()
	m.installed[ref] = struct{}{}
	m.mu.Unlock()
	if progress != nil {
		progress(flatpak.ProgressUpdate{Percent: 100, Message: "done"})
	}
	return nil
}

func (m *fakeManager) Uninstall(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uninstalls = append(m.uninstalls, ref)
	if err := m.installErr[ref]; err != nil {
		return err
	}
	delete(m.installed, ref)
	return nil
}

func (m *fakeManager) installCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.installs...)
}

func (m *fakeManager) remoteFor(ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remotes[ref]
}

type fakeRefresher struct {
	mu   sync.Mutex
	refs []string
	err  error
}

func (f *fakeRefresher) Refresh(ctx context.Context, providerRef string) (refresh.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, providerRef)
	return refresh.Result{}, f.err
}

func (f *fakeRefresher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refs...)
}

type fixture struct {
	store     *store.Store
	hub       *store.Hub
	manager   *fakeManager
	refresher *fakeRefresher
	installer *installer.Installer
}

func newFixture(t *testing.T, installedRefs ...string) *fixture {
	t.Helper()

	st, hub := testsupport.NewStore(t)

	snapshot := &catalog.Snapshot{
		Voices: []catalog.VoiceEntry{
			{
				Ref:          voiceRef,
				Name:         "English (US)",
				Remote:       "flathub",
				ProviderRef:  providerRef,
				ProviderName: "Example Speech",
			},
			{
				Ref:          altVoiceRef,
				Name:         "French",
				Remote:       "flathub",
				ProviderRef:  providerRef,
				ProviderName: "Example Speech",
			},
		},
	}

	manager := newFakeManager()
	installed := make(map[string]struct{})
	for _, ref := range installedRefs {
		manager.installed[ref] = struct{}{}
		installed[ref] = struct{}{}
	}
	if err := st.Replace(context.Background(), snapshot, installed); err != nil {
		t.Fatalf("replace store: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	refresher := &fakeRefresher{}
	inst := installer.New(cfg, st, manager, refresher, nil, nil)
	t.Cleanup(inst.Close)

	return &fixture{store: st, hub: hub, manager: manager, refresher: refresher, installer: inst}
}

func (f *fixture) await(t *testing.T, ref string) *store.Item {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.installer.Wait(ctx, ref); err != nil {
		t.Fatalf("wait for %s: %v", ref, err)
	}
	item, err := f.store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get %s: %v", ref, err)
	}
	return item
}

func (f *fixture) phases(t *testing.T, ref string) []store.Phase {
	t.Helper()
	events, _, err := f.hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("fetch events: %v", err)
	}
	var phases []store.Phase
	for _, evt := range events {
		if evt.VoiceRef != ref || evt.Phase == "" {
			continue
		}
		if len(phases) > 0 && phases[len(phases)-1] == evt.Phase {
			continue
		}
		phases = append(phases, evt.Phase)
	}
	return phases
}

func TestInstallRunsProviderThenVoice(t *testing.T) {
	f := newFixture(t)

	opID, err := f.installer.RequestInstall(context.Background(), voiceRef)
	if err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	if opID == "" {
		t.Fatal("expected operation handle")
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusInstalled {
		t.Fatalf("status = %s, want installed", item.Status)
	}

	calls := f.manager.installCalls()
	want := []string{providerRef, voiceRef}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("install calls = %v, want %v", calls, want)
	}
	if remote := f.manager.remoteFor(providerRef); remote != "flathub" {
		t.Fatalf("provider installed from remote %q, want the voice's remote", remote)
	}
	if refs := f.refresher.calls(); len(refs) != 1 || refs[0] != providerRef {
		t.Fatalf("refresh calls = %v", refs)
	}

	phases := f.phases(t, voiceRef)
	wantPhases := []store.Phase{
		store.PhaseResolving,
		store.PhaseInstallingProvider,
		store.PhaseInstallingVoice,
		store.PhaseRefreshing,
	}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for idx, phase := range wantPhases {
		if phases[idx] != phase {
			t.Fatalf("phases = %v, want %v", phases, wantPhases)
		}
	}
}

func TestInstallSkipsProviderWhenPresent(t *testing.T) {
	f := newFixture(t, providerRef)

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusInstalled {
		t.Fatalf("status = %s, want installed", item.Status)
	}
	if calls := f.manager.installCalls(); len(calls) != 1 || calls[0] != voiceRef {
		t.Fatalf("install calls = %v, want only the voice", calls)
	}
}

func TestProviderFailureNeverAttemptsVoice(t *testing.T) {
	f := newFixture(t)
	f.manager.installErr[providerRef] = errors.New("remote unreachable")

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if item.FailureReason != store.ReasonProviderInstallFailed {
		t.Fatalf("reason = %s, want provider_install_failed", item.FailureReason)
	}
	if calls := f.manager.installCalls(); len(calls) != 1 || calls[0] != providerRef {
		t.Fatalf("install calls = %v, voice must never start", calls)
	}
}

func TestVoiceFailureKeepsProvider(t *testing.T) {
	f := newFixture(t)
	f.manager.installErr[voiceRef] = errors.New("disk full")

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if item.FailureReason != store.ReasonVoiceInstallFailed {
		t.Fatalf("reason = %s, want voice_install_failed", item.FailureReason)
	}
	if _, ok := f.manager.installed[providerRef]; !ok {
		t.Fatal("provider must remain installed after a voice failure")
	}
	if len(f.manager.uninstalls) != 0 {
		t.Fatalf("nothing should be rolled back, got uninstalls %v", f.manager.uninstalls)
	}
}

func TestDuplicateRequestReturnsSameHandle(t *testing.T) {
	f := newFixture(t)
	f.manager.gates[providerRef] = make(chan struct{})
	f.manager.started[providerRef] = make(chan struct{})
	started := f.manager.started[providerRef]

	first, err := f.installer.RequestInstall(context.Background(), voiceRef)
	if err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	<-started

	second, err := f.installer.RequestInstall(context.Background(), voiceRef)
	if err != nil {
		t.Fatalf("duplicate RequestInstall: %v", err)
	}
	if second != first {
		t.Fatalf("duplicate request handle = %s, want %s", second, first)
	}

	close(f.manager.gates[providerRef])
	f.await(t, voiceRef)
}

func TestSharedProviderInstalledOnce(t *testing.T) {
	f := newFixture(t)
	f.manager.gates[providerRef] = make(chan struct{})
	f.manager.started[providerRef] = make(chan struct{})
	started := f.manager.started[providerRef]

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall voice: %v", err)
	}
	<-started

	if _, err := f.installer.RequestInstall(context.Background(), altVoiceRef); err != nil {
		t.Fatalf("RequestInstall second voice: %v", err)
	}
	close(f.manager.gates[providerRef])

	first := f.await(t, voiceRef)
	second := f.await(t, altVoiceRef)
	if first.Status != store.StatusInstalled || second.Status != store.StatusInstalled {
		t.Fatalf("statuses = %s, %s; want both installed", first.Status, second.Status)
	}

	providerInstalls := 0
	for _, ref := range f.manager.installCalls() {
		if ref == providerRef {
			providerInstalls++
		}
	}
	if providerInstalls != 1 {
		t.Fatalf("provider installed %d times, want exactly once", providerInstalls)
	}
}

func TestCancelDuringProviderKeepsProvider(t *testing.T) {
	f := newFixture(t)
	f.manager.gates[providerRef] = make(chan struct{})
	f.manager.started[providerRef] = make(chan struct{})
	started := f.manager.started[providerRef]

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	<-started

	if err := f.installer.CancelInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("CancelInstall: %v", err)
	}
	close(f.manager.gates[providerRef])

	item := f.await(t, voiceRef)
	if item.Status != store.StatusProviderOnly {
		t.Fatalf("status = %s, want provider_only", item.Status)
	}
	if _, ok := f.manager.installed[providerRef]; !ok {
		t.Fatal("provider install must run to completion despite the cancel")
	}
	for _, ref := range f.manager.installCalls() {
		if ref == voiceRef {
			t.Fatal("voice install must not start after a cancel")
		}
	}
}

func TestCancelDuringResolutionHaltsCleanly(t *testing.T) {
	f := newFixture(t)
	f.manager.listStarted = make(chan struct{})
	f.manager.listGate = make(chan struct{})
	started := f.manager.listStarted

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	<-started

	if err := f.installer.CancelInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("CancelInstall: %v", err)
	}
	close(f.manager.listGate)

	item := f.await(t, voiceRef)
	if item.Status != store.StatusUnavailable {
		t.Fatalf("status = %s, want unavailable after a cancel during resolution", item.Status)
	}
	if calls := f.manager.installCalls(); len(calls) != 0 {
		t.Fatalf("no install may run after a cancel during resolution, got %v", calls)
	}
}

func TestInstalledListFailureReportsResolution(t *testing.T) {
	f := newFixture(t)
	f.manager.listErr = errors.New("flatpak list: exit status 1")

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if item.FailureReason != store.ReasonResolutionFailed {
		t.Fatalf("reason = %s, want resolution_failed", item.FailureReason)
	}
	if calls := f.manager.installCalls(); len(calls) != 0 {
		t.Fatalf("no install may run when resolution fails, got %v", calls)
	}
}

func TestCancelAfterVoiceStepStartedIsRejected(t *testing.T) {
	f := newFixture(t, providerRef)
	f.manager.gates[voiceRef] = make(chan struct{})
	f.manager.started[voiceRef] = make(chan struct{})
	started := f.manager.started[voiceRef]

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	<-started

	err := f.installer.CancelInstall(context.Background(), voiceRef)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled marker once the voice step started, got %v", err)
	}
	close(f.manager.gates[voiceRef])

	item := f.await(t, voiceRef)
	if item.Status != store.StatusInstalled {
		t.Fatalf("status = %s, the install must run to completion", item.Status)
	}
}

func TestCancelWithoutOperationFails(t *testing.T) {
	f := newFixture(t)
	err := f.installer.CancelInstall(context.Background(), voiceRef)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestInstallRequestForInstalledVoiceIsNoop(t *testing.T) {
	f := newFixture(t, providerRef, voiceRef)

	opID, err := f.installer.RequestInstall(context.Background(), voiceRef)
	if err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	if opID != "" {
		t.Fatalf("expected no operation for an installed voice, got %s", opID)
	}
	if calls := f.manager.installCalls(); len(calls) != 0 {
		t.Fatalf("no install should run, got %v", calls)
	}
}

func TestUninstallRemovesVoiceOnly(t *testing.T) {
	f := newFixture(t, providerRef, voiceRef)

	opID, err := f.installer.RequestUninstall(context.Background(), voiceRef)
	if err != nil {
		t.Fatalf("RequestUninstall: %v", err)
	}
	if opID == "" {
		t.Fatal("expected operation handle")
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusProviderOnly {
		t.Fatalf("status = %s, want provider_only", item.Status)
	}
	if len(f.manager.uninstalls) != 1 || f.manager.uninstalls[0] != voiceRef {
		t.Fatalf("uninstalls = %v, want only the voice", f.manager.uninstalls)
	}
	if _, ok := f.manager.installed[providerRef]; !ok {
		t.Fatal("provider must survive a voice removal")
	}
	if refs := f.refresher.calls(); len(refs) != 1 || refs[0] != providerRef {
		t.Fatalf("refresh calls = %v", refs)
	}
}

func TestUninstallFailureRestoresInstalled(t *testing.T) {
	f := newFixture(t, providerRef, voiceRef)
	f.manager.installErr[voiceRef] = errors.New("bundle busy")

	if _, err := f.installer.RequestUninstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestUninstall: %v", err)
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusInstalled {
		t.Fatalf("status = %s, want installed restored", item.Status)
	}
}

func TestUninstallRequiresInstalledVoice(t *testing.T) {
	f := newFixture(t)
	_, err := f.installer.RequestUninstall(context.Background(), voiceRef)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestRefreshFailureDoesNotFailInstall(t *testing.T) {
	f := newFixture(t, providerRef)
	f.refresher.err = services.ErrRefreshPartial

	if _, err := f.installer.RequestInstall(context.Background(), voiceRef); err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}

	item := f.await(t, voiceRef)
	if item.Status != store.StatusInstalled {
		t.Fatalf("status = %s, refresh failures must not fail the install", item.Status)
	}
}
