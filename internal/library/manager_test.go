package library

import (
	"context"
	"errors"
	"io"
	"testing"

	"skytune/internal/remote"
	"skytune/internal/shared"
	tu "skytune/internal/testing"
)

func newTestManager(fc *tu.FakeClient, store SnapshotStore) *Manager {
	dial := func() remote.Client { return fc }
	return NewManager(nil, store, dial, shared.NewLogger(io.Discard))
}

func TestManagerSetCredentials(t *testing.T) {
	t.Run("MissingCredentials", func(t *testing.T) {
		m := newTestManager(&tu.FakeClient{}, nil)
		if err := m.SetCredentials("", ""); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if _, err := m.Library(); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected no library before credentials, got %v", err)
		}
	})

	t.Run("IdempotentWhenUnchanged", func(t *testing.T) {
		m := newTestManager(&tu.FakeClient{}, nil)
		if err := m.SetCredentials("user@example.com", "secret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first, err := m.Library()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := m.SetCredentials("user@example.com", "secret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, _ := m.Library()
		if first != second {
			t.Error("expected unchanged credentials to keep the same library")
		}
	})

	t.Run("ChangedCredentialsRebuild", func(t *testing.T) {
		fc := &tu.FakeClient{}
		m := newTestManager(fc, nil)
		if err := m.SetCredentials("user@example.com", "secret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first, _ := m.Library()

		if err := m.SetCredentials("other@example.com", "secret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, _ := m.Library()

		if first == second {
			t.Error("expected changed credentials to build a new library")
		}
		if !fc.LoggedOut {
			t.Error("expected the previous session to be logged out")
		}
	})
}

func TestManagerPersistAndRestore(t *testing.T) {
	fc := catalogFixture()
	fc.Tracks = []remote.RawTrack{
		storeTrack("l1", "c1", "A", "X", "Art1", "alb1", 1),
	}
	store := tu.NewMemoryStore()

	m := newTestManager(fc, store)
	if err := m.SetCredentials("user@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.RefreshNow(context.Background()); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if store.SaveCalls != 1 {
		t.Fatalf("expected one snapshot save per cycle, got %d", store.SaveCalls)
	}

	// A new process with the same store starts warm without refreshing.
	m2 := newTestManager(fc, store)
	if err := m2.SetCredentials("user@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lib, err := m2.Library()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lib.Tracks()) != 1 {
		t.Errorf("expected the snapshot to seed the new library, got %d tracks", len(lib.Tracks()))
	}
}

func TestManagerRestoreDiscardsStaleSchema(t *testing.T) {
	store := tu.NewMemoryStore()
	store.Blobs[shared.Hash("user@example.com")] = []byte(`{"schema":999}`)

	m := newTestManager(catalogFixture(), store)
	if err := m.SetCredentials("user@example.com", "secret"); err != nil {
		t.Fatalf("a stale snapshot must not fail credential setup: %v", err)
	}

	lib, err := m.Library()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lib.Tracks()) != 0 {
		t.Error("expected an empty graph after discarding a stale snapshot")
	}
}

func TestManagerClearCredentials(t *testing.T) {
	fc := &tu.FakeClient{}
	m := newTestManager(fc, nil)
	if err := m.SetCredentials("user@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.ClearCredentials(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fc.LoggedOut {
		t.Error("expected clearing credentials to log out")
	}
	if _, err := m.Library(); !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected no library after clearing, got %v", err)
	}
}

func TestManagerRefreshNowWithoutCredentials(t *testing.T) {
	m := newTestManager(&tu.FakeClient{}, nil)
	if err := m.RefreshNow(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}
