package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/persistence/sqlite"
	"github.com/example/conference-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// History bundles a HistoryService with the deterministic sources it uses.
type History struct {
	Service *application.HistoryService
	Repo    persistence.VersionRepository
	Clock   *Clock
	IDs     *IDGenerator
}

// QuietLogger discards every record.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewHistory wires a HistoryService over repo with a ticking clock and a
// deterministic id generator. A nil repo uses in-memory storage.
func NewHistory(tb testing.TB, repo persistence.VersionRepository, validator *scheduler.Validator) History {
	tb.Helper()
	if repo == nil {
		repo = memory.New()
	}
	clock := NewTickingClock(ReferenceTime(), time.Minute)
	ids := NewIDGenerator(tb.Name())
	return History{
		Service: application.NewHistoryService(repo, validator, ids.NextFunc(), clock.NowFunc(), QuietLogger()),
		Repo:    repo,
		Clock:   clock,
		IDs:     ids,
	}
}

// NewSQLiteStore opens a migrated store in a temp-file database that is
// closed when the test ends.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "history.db")
	store, err := sqlite.Open(context.Background(), migration.TempFileTestSQLiteConfig(path), QuietLogger())
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}
