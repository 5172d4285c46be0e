package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

func openStore(t *testing.T, path, key string) *Store {
	t.Helper()
	store, err := Open(path, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  ", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitrina.db")
	store := openStore(t, path, "")
	ctx := context.Background()

	if _, found, err := store.Load(ctx); err != nil || found {
		t.Fatalf("load empty: found=%v err=%v", found, err)
	}

	want := session.Session{AccessToken: "a1", RefreshToken: "r1"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, session.Session{AccessToken: "a2", RefreshToken: "r2"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	want = session.Session{AccessToken: "a2", RefreshToken: "r2"}

	reopened := openStore(t, path, session.StorageKey)
	got, found, err := reopened.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("session = %+v, want %+v", got, want)
	}
}

func TestClearOnlyOwnKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitrina.db")
	front := openStore(t, path, "auth-storage")
	other := openStore(t, path, "other-storage")
	ctx := context.Background()

	_ = front.Save(ctx, session.Session{AccessToken: "a1"})
	_ = other.Save(ctx, session.Session{AccessToken: "b1"})

	if err := front.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := front.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, found, _ := front.Load(ctx); found {
		t.Fatal("cleared session still present")
	}
	if got, found, _ := other.Load(ctx); !found || got.AccessToken != "b1" {
		t.Fatalf("other session = %+v, found=%v", got, found)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()
	var n int
	if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM session_records WHERE access_token = 'a1'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("cleared token rows = %d, want 0", n)
	}
}
