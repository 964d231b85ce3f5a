package repositories

import (
	"bytes"
	"errors"
	"testing"

	"skytune/internal/shared"
)

// setupTestRepo creates an in-memory SQLite database with the snapshots
// table migrated.
func setupTestRepo(t *testing.T) *SnapshotRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewSnapshotRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func TestSnapshotRepository(t *testing.T) {
	account := shared.Hash("user@example.com")
	blob := []byte(`{"schema":1,"tracks":[]}`)

	t.Run("SaveAndLoad", func(t *testing.T) {
		repo := setupTestRepo(t)

		if err := repo.Save(account, blob); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}

		loaded, err := repo.Load(account)
		if err != nil {
			t.Fatalf("failed to load snapshot: %v", err)
		}
		if !bytes.Equal(loaded, blob) {
			t.Errorf("loaded blob differs from saved blob")
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		repo := setupTestRepo(t)

		if err := repo.Save(account, blob); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}
		updated := []byte(`{"schema":1,"tracks":[{"id":"c1"}]}`)
		if err := repo.Save(account, updated); err != nil {
			t.Fatalf("failed to overwrite snapshot: %v", err)
		}

		loaded, err := repo.Load(account)
		if err != nil {
			t.Fatalf("failed to load snapshot: %v", err)
		}
		if !bytes.Equal(loaded, updated) {
			t.Error("expected the second save to win")
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		repo := setupTestRepo(t)

		_, err := repo.Load("no-such-account")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := setupTestRepo(t)

		if err := repo.Save(account, blob); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}
		if err := repo.Delete(account); err != nil {
			t.Fatalf("failed to delete snapshot: %v", err)
		}
		if _, err := repo.Load(account); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}

		// Deleting again is a no-op.
		if err := repo.Delete(account); err != nil {
			t.Errorf("unexpected error deleting missing snapshot: %v", err)
		}
	})

	t.Run("UpdatedAt", func(t *testing.T) {
		repo := setupTestRepo(t)

		if _, err := repo.UpdatedAt(account); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound before save, got %v", err)
		}

		if err := repo.Save(account, blob); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}
		updated, err := repo.UpdatedAt(account)
		if err != nil {
			t.Fatalf("failed to read timestamp: %v", err)
		}
		if updated.IsZero() {
			t.Error("expected a non-zero timestamp after save")
		}
	})
}
