package api

import (
	"voicerack/internal/store"
)

// FromStoreItem converts an internal store row into the transport DTO.
func FromStoreItem(item *store.Item) Voice {
	if item == nil {
		return Voice{}
	}
	voice := Voice{
		Ref:             item.Ref,
		Name:            item.Name,
		Summary:         item.Summary,
		Remote:          item.Remote,
		Languages:       append([]string(nil), item.Languages...),
		LanguageNames:   append([]string(nil), item.LanguageNames...),
		ProviderRef:     item.ProviderRef,
		ProviderName:    item.ProviderName,
		DownloadSize:    item.DownloadSize,
		Status:          string(item.Status),
		Phase:           string(item.Phase),
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		FailureReason:   string(item.FailureReason),
		ErrorMessage:    item.ErrorMessage,
		OperationID:     item.OperationID,
	}
	if !item.UpdatedAt.IsZero() {
		voice.UpdatedAt = item.UpdatedAt.Format(dateTimeFormat)
	}
	return voice
}

// FromStoreItems converts a slice of store rows, preserving order.
func FromStoreItems(items []*store.Item) []Voice {
	voices := make([]Voice, 0, len(items))
	for _, item := range items {
		voices = append(voices, FromStoreItem(item))
	}
	return voices
}
