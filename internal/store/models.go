package store

import "time"

// Status represents the installation state of a voice.
type Status string

const (
	// StatusUnavailable means neither the voice nor its provider is installed.
	StatusUnavailable Status = "unavailable"
	// StatusProviderOnly means the provider is installed but the voice is not.
	StatusProviderOnly Status = "provider_only"
	// StatusInstalled means both the voice and its provider are installed.
	StatusInstalled Status = "installed"
	// StatusInstalling means an install operation is in flight.
	StatusInstalling Status = "installing"
	// StatusUninstalling means a removal operation is in flight.
	StatusUninstalling Status = "uninstalling"
	// StatusFailed means the last operation ended in error.
	StatusFailed Status = "failed"
)

// Phase is the sub-state of an in-flight operation.
type Phase string

const (
	PhaseResolving          Phase = "resolving"
	PhaseInstallingProvider Phase = "installing_provider"
	PhaseInstallingVoice    Phase = "installing_voice"
	PhaseRemovingVoice      Phase = "removing_voice"
	PhaseRefreshing         Phase = "refreshing"
)

// FailureReason classifies a failed operation.
type FailureReason string

const (
	ReasonResolutionFailed      FailureReason = "resolution_failed"
	ReasonProviderInstallFailed FailureReason = "provider_install_failed"
	ReasonVoiceInstallFailed    FailureReason = "voice_install_failed"
	ReasonUninstallFailed       FailureReason = "uninstall_failed"
	ReasonCancelled             FailureReason = "cancelled"
)

var allStatuses = []Status{
	StatusUnavailable,
	StatusProviderOnly,
	StatusInstalled,
	StatusInstalling,
	StatusUninstalling,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ValidStatus reports whether the given status is known.
func ValidStatus(status Status) bool {
	_, ok := statusSet[status]
	return ok
}

// allowedTransitions lists the legal status moves. Catalog repopulation
// bypasses this table; only operation-driven mutation is checked.
var allowedTransitions = map[Status][]Status{
	StatusUnavailable:  {StatusInstalling},
	StatusProviderOnly: {StatusInstalling},
	StatusFailed:       {StatusInstalling},
	StatusInstalled:    {StatusUninstalling},
	StatusInstalling:   {StatusInstalled, StatusProviderOnly, StatusUnavailable, StatusFailed},
	StatusUninstalling: {StatusProviderOnly, StatusInstalled, StatusFailed},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Item is one voice row in the state store.
type Item struct {
	Ref             string
	Name            string
	Summary         string
	Remote          string
	Languages       []string
	LanguageNames   []string
	ProviderRef     string
	ProviderName    string
	DownloadSize    int64
	Status          Status
	Phase           Phase
	ProgressPercent float64
	ProgressMessage string
	FailureReason   FailureReason
	ErrorMessage    string
	OperationID     string
	UpdatedAt       time.Time
}

// InFlight reports whether the item has an operation in progress.
func (i *Item) InFlight() bool {
	return i.Status == StatusInstalling || i.Status == StatusUninstalling
}
