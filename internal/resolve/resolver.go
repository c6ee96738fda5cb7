package resolve

import (
	"voicerack/internal/store"
)

// Step is one unit of work in a voice install sequence.
type Step string

const (
	// StepInstallProvider installs the voice's provider bundle first.
	StepInstallProvider Step = "install_provider"
	// StepWaitForProvider waits for another operation's in-flight install of
	// the same provider instead of issuing a duplicate.
	StepWaitForProvider Step = "wait_for_provider"
	// StepInstallVoice installs the voice bundle itself.
	StepInstallVoice Step = "install_voice"
)

// InFlight exposes the orchestrator's keyed in-flight operation registry.
type InFlight interface {
	Active(ref string) bool
}

// Steps computes the ordered install sequence for a voice. The installed set
// is queried from the bundle manager once per resolution and passed in; the
// in-flight registry prevents a second concurrent install of a shared
// provider anywhere in the system.
func Steps(voice *store.Item, installed map[string]struct{}, inflight InFlight) []Step {
	if voice == nil {
		return nil
	}
	if _, ok := installed[voice.Ref]; ok {
		return nil
	}
	if _, ok := installed[voice.ProviderRef]; ok {
		return []Step{StepInstallVoice}
	}
	if inflight != nil && inflight.Active(voice.ProviderRef) {
		return []Step{StepWaitForProvider, StepInstallVoice}
	}
	return []Step{StepInstallProvider, StepInstallVoice}
}
