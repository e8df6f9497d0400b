package testsupport

import (
	"context"
	"testing"

	"mikanarr/internal/config"
	"mikanarr/internal/store"
)

// MustOpenStore opens the store at the config's database path and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}
