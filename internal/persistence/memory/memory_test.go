package memory_test

import (
	"testing"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/persistence/persistencetest"
)

func TestStorageContract(t *testing.T) {
	persistencetest.RunVersionRepositoryContract(t, func(t *testing.T) persistence.VersionRepository {
		storage := memory.New()
		t.Cleanup(func() { _ = storage.Close() })
		return storage
	})
}
