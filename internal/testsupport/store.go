package testsupport

import (
	"testing"

	"gatewarden/internal/config"
	"gatewarden/internal/journal"
	"gatewarden/internal/logging"
)

// MustOpenJournal opens the config's access journal and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Journal {
	t.Helper()

	j, err := journal.OpenInDir(cfg.Paths.StateDir, logging.NewNop())
	if err != nil {
		t.Fatalf("journal.OpenInDir: %v", err)
	}
	t.Cleanup(func() {
		_ = j.Close()
	})
	return j
}
