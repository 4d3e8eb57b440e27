package testsupport

import (
	"testing"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/history"
)

// MustOpenStore opens the run history for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.OpenConfigured(cfg)
	if err != nil {
		t.Fatalf("history.OpenConfigured: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
