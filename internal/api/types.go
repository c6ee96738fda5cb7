package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Voice describes one installable voice in a transport-friendly format.
type Voice struct {
	Ref             string   `json:"ref"`
	Name            string   `json:"name"`
	Summary         string   `json:"summary,omitempty"`
	Remote          string   `json:"remote"`
	Languages       []string `json:"languages,omitempty"`
	LanguageNames   []string `json:"languageNames,omitempty"`
	ProviderRef     string   `json:"providerRef"`
	ProviderName    string   `json:"providerName,omitempty"`
	DownloadSize    int64    `json:"downloadSize,omitempty"`
	Status          string   `json:"status"`
	Phase           string   `json:"phase,omitempty"`
	ProgressPercent float64  `json:"progressPercent,omitempty"`
	ProgressMessage string   `json:"progressMessage,omitempty"`
	FailureReason   string   `json:"failureReason,omitempty"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
	OperationID     string   `json:"operationId,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// Provider summarizes one speech-provider bundle and its voices.
type Provider struct {
	Ref             string `json:"ref"`
	Name            string `json:"name"`
	Installed       bool   `json:"installed"`
	Voices          int    `json:"voices"`
	InstalledVoices int    `json:"installedVoices"`
}

// CatalogSummary reports the outcome of a catalog refresh.
type CatalogSummary struct {
	Voices    int `json:"voices"`
	Providers int `json:"providers"`
	Installed int `json:"installed"`
}

// RefreshOutcome reports one provider refresh pass.
type RefreshOutcome struct {
	Provider    string   `json:"provider"`
	Reached     int      `json:"reached"`
	Unreachable []string `json:"unreachable,omitempty"`
}
