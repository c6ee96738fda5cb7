package installer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicerack/internal/config"
	"voicerack/internal/logging"
	"voicerack/internal/notifications"
	"voicerack/internal/refresh"
	"voicerack/internal/resolve"
	"voicerack/internal/services"
	"voicerack/internal/services/flatpak"
	"voicerack/internal/store"
)

// Refresher signals running providers after their voice set changed.
type Refresher interface {
	Refresh(ctx context.Context, providerRef string) (refresh.Result, error)
}

// Installer orchestrates voice installs and removals. Every request returns
// immediately with an operation handle; the work itself runs asynchronously
// and is observable through the store's change feed.
type Installer struct {
	store     *store.Store
	manager   flatpak.Manager
	refresher Refresher
	notifier  notifications.Service
	logger    *slog.Logger
	inflight  *inflightRegistry
	locks     *refLocks
	wg        sync.WaitGroup
}

// notifyTimeout bounds the outbound notification request issued after an
// operation settles.
const notifyTimeout = 15 * time.Second

// New constructs the installer.
func New(cfg *config.Config, st *store.Store, manager flatpak.Manager, refresher Refresher, notifier notifications.Service, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockDir := ""
	if cfg != nil {
		lockDir = cfg.Paths.LockDir
	}
	return &Installer{
		store:     st,
		manager:   manager,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger.With(logging.String(logging.FieldComponent, "installer")),
		inflight:  newInflightRegistry(),
		locks:     newRefLocks(lockDir),
	}
}

// InFlight exposes the registry of refs with operations in progress.
func (i *Installer) InFlight() resolve.InFlight {
	return i.inflight
}

// RequestInstall starts an asynchronous install of the voice and returns an
// operation handle. Requesting a voice whose install is already in flight
// returns the existing handle; requesting an installed voice is a no-op.
func (i *Installer) RequestInstall(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "installer", "request install", "voice ref required", nil)
	}

	item, err := i.store.Get(ctx, ref)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "installer", "request install", ref, err)
	}
	if op, ok := i.inflight.lookup(ref); ok {
		return op.id, nil
	}
	if item.Status == store.StatusInstalled {
		return "", nil
	}
	if item.Status == store.StatusUninstalling {
		return "", services.Wrap(services.ErrValidation, "installer", "request install", "removal in progress for "+ref, nil)
	}

	opCtx, cancel := context.WithCancel(context.Background())
	op := &operation{
		id:     uuid.NewString(),
		ref:    ref,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if !i.inflight.claim(ref, op) {
		cancel()
		existing, _ := i.inflight.lookup(ref)
		if existing != nil {
			return existing.id, nil
		}
		return "", services.Wrap(services.ErrTransient, "installer", "request install", "operation registry contention for "+ref, nil)
	}

	if _, err := i.store.BeginOperation(ctx, ref, store.StatusInstalling, store.PhaseResolving, op.id); err != nil {
		i.inflight.release(ref)
		cancel()
		return "", services.Wrap(services.ErrValidation, "installer", "request install", ref, err)
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer close(op.done)
		defer i.inflight.release(ref)
		defer cancel()
		i.runInstall(opCtx, op, item)
	}()
	return op.id, nil
}

// CancelInstall asks the in-flight install of the voice to stop. A provider
// install that is already running completes before the cancellation takes
// effect; once the voice step itself has started the operation can no longer
// be cancelled.
func (i *Installer) CancelInstall(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	op, ok := i.inflight.lookup(ref)
	if !ok {
		return services.Wrap(services.ErrNotFound, "installer", "cancel install", "no active operation for "+ref, nil)
	}
	if item, err := i.store.Get(ctx, ref); err == nil {
		if item.Phase == store.PhaseInstallingVoice || item.Phase == store.PhaseRefreshing {
			return services.Wrap(services.ErrCancelled, "installer", "cancel install", "voice step already started for "+ref, nil)
		}
	}
	op.cancel()
	return nil
}

// RequestUninstall starts an asynchronous removal of the voice bundle. The
// provider bundle is kept; other voices may depend on it.
func (i *Installer) RequestUninstall(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "installer", "request uninstall", "voice ref required", nil)
	}

	item, err := i.store.Get(ctx, ref)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "installer", "request uninstall", ref, err)
	}
	if _, ok := i.inflight.lookup(ref); ok {
		return "", services.Wrap(services.ErrValidation, "installer", "request uninstall", "operation in progress for "+ref, nil)
	}
	if item.Status != store.StatusInstalled {
		return "", services.Wrap(services.ErrValidation, "installer", "request uninstall", "voice not installed: "+ref, nil)
	}

	opCtx, cancel := context.WithCancel(context.Background())
	op := &operation{
		id:     uuid.NewString(),
		ref:    ref,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if !i.inflight.claim(ref, op) {
		cancel()
		return "", services.Wrap(services.ErrTransient, "installer", "request uninstall", "operation registry contention for "+ref, nil)
	}

	if _, err := i.store.BeginOperation(ctx, ref, store.StatusUninstalling, store.PhaseRemovingVoice, op.id); err != nil {
		i.inflight.release(ref)
		cancel()
		return "", services.Wrap(services.ErrValidation, "installer", "request uninstall", ref, err)
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer close(op.done)
		defer i.inflight.release(ref)
		defer cancel()
		i.runUninstall(opCtx, op, item)
	}()
	return op.id, nil
}

// Wait blocks until no operation for the ref is in flight or the context is
// done. It exists for callers that need a synchronous result.
func (i *Installer) Wait(ctx context.Context, ref string) error {
	return i.inflight.wait(ctx, strings.TrimSpace(ref))
}

// Close waits for all in-flight operations to finish.
func (i *Installer) Close() {
	i.wg.Wait()
}

func (i *Installer) runInstall(ctx context.Context, op *operation, item *store.Item) {
	logger := i.logger.With(
		logging.String(logging.FieldVoice, item.Ref),
		logging.String(logging.FieldProvider, item.ProviderRef),
		logging.String(logging.FieldOperationID, op.id),
	)
	sctx := services.WithOperationID(services.WithVoiceRef(ctx, item.Ref), op.id)

	release, err := i.locks.acquire(sctx, item.Ref)
	if err != nil {
		if sctx.Err() != nil {
			i.finishCancelled(logger, item, false)
			return
		}
		i.failInstall(logger, item, store.ReasonResolutionFailed, err)
		return
	}
	defer release()

	installed, err := i.manager.InstalledRefs(sctx)
	if err != nil {
		if sctx.Err() != nil {
			i.finishCancelled(logger, item, false)
			return
		}
		i.failInstall(logger, item, store.ReasonResolutionFailed, err)
		return
	}

	steps := resolve.Steps(item, installed, i.inflight)
	logger.Info("install plan resolved", logging.Int("steps", len(steps)))

	providerInstalled := hasRef(installed, item.ProviderRef)
	for _, step := range steps {
		if sctx.Err() != nil {
			i.finishCancelled(logger, item, providerInstalled)
			return
		}
		switch step {
		case resolve.StepInstallProvider:
			ok, err := i.installProvider(sctx, op, logger, item)
			if err != nil {
				if sctx.Err() != nil {
					i.finishCancelled(logger, item, providerInstalled)
					return
				}
				i.failInstall(logger, item, store.ReasonProviderInstallFailed, err)
				return
			}
			providerInstalled = true
			if !ok {
				// Cancelled after the provider completed; the provider stays.
				i.finishInstall(sctx, logger, item, store.StatusProviderOnly)
				return
			}
		case resolve.StepWaitForProvider:
			if err := i.waitForProvider(sctx, logger, item); err != nil {
				if sctx.Err() != nil {
					i.finishCancelled(logger, item, providerInstalled)
					return
				}
				i.failInstall(logger, item, store.ReasonProviderInstallFailed, err)
				return
			}
			providerInstalled = true
		case resolve.StepInstallVoice:
			if err := i.installVoice(sctx, logger, item); err != nil {
				i.failInstall(logger, item, store.ReasonVoiceInstallFailed, err)
				return
			}
		}
	}

	i.refreshProvider(logger, item)
	i.finishInstall(sctx, logger, item, store.StatusInstalled)
	i.publishNotification(notifications.EventVoiceInstalled, notifications.Payload{
		"voice":    item.Name,
		"provider": item.ProviderName,
	})
}

// installProvider runs the provider install to completion regardless of
// cancellation; a half-installed provider is worse than a finished one. The
// bool result reports whether the operation should continue to the voice
// step.
func (i *Installer) installProvider(ctx context.Context, op *operation, logger *slog.Logger, item *store.Item) (bool, error) {
	// Bookkeeping runs detached alongside the install itself; only step
	// boundaries observe cancellation.
	installCtx := context.WithoutCancel(ctx)
	if err := i.store.SetPhase(installCtx, item.Ref, store.PhaseInstallingProvider); err != nil {
		return false, err
	}

	claimed := i.inflight.claim(item.ProviderRef, op)
	if !claimed {
		// Another operation grabbed the provider since resolution; wait on it.
		if err := i.waitForProvider(ctx, logger, item); err != nil {
			return false, err
		}
		return ctx.Err() == nil, nil
	}
	defer i.inflight.release(item.ProviderRef)

	release, err := i.locks.acquire(installCtx, item.ProviderRef)
	if err != nil {
		return false, err
	}
	defer release()

	logger.Info("installing provider")
	err = i.manager.Install(installCtx, item.Remote, item.ProviderRef, func(update flatpak.ProgressUpdate) {
		_ = i.store.SetProgress(installCtx, item.Ref, update.Percent, update.Message)
	})
	if err != nil {
		return false, err
	}
	logger.Info("provider installed")
	return ctx.Err() == nil, nil
}

// waitForProvider blocks on the concurrent operation installing the shared
// provider, then verifies the provider actually landed.
func (i *Installer) waitForProvider(ctx context.Context, logger *slog.Logger, item *store.Item) error {
	if err := i.store.SetPhase(ctx, item.Ref, store.PhaseInstallingProvider); err != nil {
		return err
	}
	_ = i.store.SetProgress(ctx, item.Ref, 0, "waiting for provider install")
	logger.Info("waiting for concurrent provider install")

	if err := i.inflight.wait(ctx, item.ProviderRef); err != nil {
		return err
	}
	installed, err := i.manager.InstalledRefs(ctx)
	if err != nil {
		return err
	}
	if !hasRef(installed, item.ProviderRef) {
		return services.Wrap(services.ErrExternalTool, "installer", "wait for provider",
			"concurrent provider install did not complete", nil)
	}
	return nil
}

// installVoice runs detached from cancellation; once the voice step starts
// the install is committed and runs to its own success or failure.
func (i *Installer) installVoice(ctx context.Context, logger *slog.Logger, item *store.Item) error {
	installCtx := context.WithoutCancel(ctx)
	if err := i.store.SetPhase(installCtx, item.Ref, store.PhaseInstallingVoice); err != nil {
		return err
	}
	logger.Info("installing voice", logging.String("remote", item.Remote))
	return i.manager.Install(installCtx, item.Remote, item.Ref, func(update flatpak.ProgressUpdate) {
		_ = i.store.SetProgress(installCtx, item.Ref, update.Percent, update.Message)
	})
}

func (i *Installer) runUninstall(ctx context.Context, op *operation, item *store.Item) {
	logger := i.logger.With(
		logging.String(logging.FieldVoice, item.Ref),
		logging.String(logging.FieldProvider, item.ProviderRef),
		logging.String(logging.FieldOperationID, op.id),
	)

	release, err := i.locks.acquire(ctx, item.Ref)
	if err != nil {
		i.restoreInstalled(logger, item, err)
		return
	}
	defer release()

	logger.Info("removing voice")
	if err := i.manager.Uninstall(ctx, item.Ref); err != nil {
		i.restoreInstalled(logger, item, err)
		return
	}

	i.refreshProvider(logger, item)
	i.finishInstall(ctx, logger, item, store.StatusProviderOnly)
	i.publishNotification(notifications.EventVoiceRemoved, notifications.Payload{
		"voice":    item.Name,
		"provider": item.ProviderName,
	})
}

// refreshProvider tells running provider instances to reload. Refresh errors
// never fail the operation; the next provider restart picks the change up.
func (i *Installer) refreshProvider(logger *slog.Logger, item *store.Item) {
	if i.refresher == nil {
		return
	}
	ctx := context.Background()
	if err := i.store.SetPhase(ctx, item.Ref, store.PhaseRefreshing); err != nil {
		logger.Warn("refresh phase not recorded", logging.Error(err))
	}
	if _, err := i.refresher.Refresh(ctx, item.ProviderRef); err != nil {
		logger.Warn("provider refresh incomplete", logging.Error(err))
	}
}

func (i *Installer) finishInstall(ctx context.Context, logger *slog.Logger, item *store.Item, final store.Status) {
	if err := i.store.FinishOperation(context.WithoutCancel(ctx), item.Ref, final); err != nil {
		logger.Error("final status not recorded", logging.Error(err))
		return
	}
	logger.Info("operation finished", logging.String("status", string(final)))
}

// finishCancelled settles a cancelled install that never touched the voice
// bundle. The status falls back to what is actually on disk.
func (i *Installer) finishCancelled(logger *slog.Logger, item *store.Item, providerInstalled bool) {
	final := store.StatusUnavailable
	if providerInstalled {
		final = store.StatusProviderOnly
	}
	logger.Info("install cancelled before voice step")
	i.finishInstall(context.Background(), logger, item, final)
}

func (i *Installer) failInstall(logger *slog.Logger, item *store.Item, reason store.FailureReason, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	logger.Error("install failed",
		logging.String("reason", string(reason)),
		logging.Error(err))
	if storeErr := i.store.Fail(context.Background(), item.Ref, reason, message); storeErr != nil {
		logger.Error("failure not recorded", logging.Error(storeErr))
	}
	i.publishNotification(notifications.EventVoiceInstallFailed, notifications.Payload{
		"voice": item.Name,
		"error": message,
	})
}

// restoreInstalled settles a failed removal. The bundle is still on disk, so
// installed remains the truth.
func (i *Installer) restoreInstalled(logger *slog.Logger, item *store.Item, err error) {
	logger.Error("uninstall failed, voice remains installed", logging.Error(err))
	if storeErr := i.store.FinishOperation(context.Background(), item.Ref, store.StatusInstalled); storeErr != nil {
		logger.Error("restore not recorded", logging.Error(storeErr))
	}
	message := ""
	if err != nil {
		message = err.Error()
	}
	i.publishNotification(notifications.EventVoiceInstallFailed, notifications.Payload{
		"voice": item.Name,
		"error": message,
	})
}

func (i *Installer) publishNotification(event notifications.Event, payload notifications.Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := i.notifier.Publish(ctx, event, payload); err != nil {
		i.logger.Warn("notification not delivered", logging.Error(err))
	}
}

func hasRef(installed map[string]struct{}, ref string) bool {
	_, ok := installed[ref]
	return ok
}
