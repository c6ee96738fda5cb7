package catalog

// VoiceEntry identifies an installable voice bundle. Entries are immutable
// once fetched; a re-fetch replaces the whole set.
type VoiceEntry struct {
	Ref           string
	Name          string
	Summary       string
	Remote        string
	Languages     []string
	LanguageNames []string
	ProviderRef   string
	ProviderName  string
	DownloadSize  int64
}

// ProviderEntry identifies a speech-provider bundle, derived and
// deduplicated from the voices that extend it.
type ProviderEntry struct {
	Ref  string
	Name string
}

// Snapshot is the result of one catalog fetch.
type Snapshot struct {
	Voices    []VoiceEntry
	Providers []ProviderEntry
}

// Voice returns the entry for the given ref, if present.
func (s *Snapshot) Voice(ref string) (VoiceEntry, bool) {
	if s == nil {
		return VoiceEntry{}, false
	}
	for _, voice := range s.Voices {
		if voice.Ref == ref {
			return voice, true
		}
	}
	return VoiceEntry{}, false
}
