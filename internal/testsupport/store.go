package testsupport

import (
	"testing"

	"voicerack/internal/store"
)

// NewStore opens an in-memory store with an attached change-event hub and
// closes it when the test finishes.
func NewStore(t testing.TB) (*store.Store, *store.Hub) {
	t.Helper()

	hub := store.NewHub(128)
	st, err := store.Open(hub)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st, hub
}
