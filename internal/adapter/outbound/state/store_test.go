package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoad_NoFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "session.json"), "", testLogger())

	sess, found, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found || !sess.IsZero() {
		t.Errorf("Load() = %+v, %v, want nothing", sess, found)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path, "", testLogger())
	want := session.Session{AccessToken: "a1", RefreshToken: "r1"}

	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened := NewFileStore(path, session.StorageKey, testLogger())
	got, found, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found || got != want {
		t.Errorf("Load() = %+v, %v, want %+v", got, found, want)
	}
}

func TestSave_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path, "", testLogger())
	if err := s.Save(context.Background(), session.Session{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["version"] != FileVersion {
		t.Errorf("version = %v, want %q", raw["version"], FileVersion)
	}
	records, _ := raw["records"].(map[string]any)
	rec, _ := records["auth-storage"].(map[string]any)
	if rec["accessToken"] != "a1" || rec["refreshToken"] != "r1" {
		t.Errorf("record = %v, want accessToken/refreshToken", rec)
	}
	if len(rec) != 2 {
		t.Errorf("record has %d fields, want only the credential pair", len(rec))
	}
	if strings.Contains(string(data), "isModelo") || strings.Contains(string(data), "is_authenticated") {
		t.Error("role flags persisted")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Error("backup file written")
	}
}

func TestSave_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix permission bits")
	}
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path, "", testLogger())
	if err := s.Save(context.Background(), session.Session{AccessToken: "a1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %04o, want 0600", perm)
	}
}

func TestClear_KeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	front := NewFileStore(path, "auth-storage", testLogger())
	admin := NewFileStore(path, "admin-storage", testLogger())

	_ = front.Save(context.Background(), session.Session{AccessToken: "a1"})
	_ = admin.Save(context.Background(), session.Session{AccessToken: "b1"})

	if err := front.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, found, _ := front.Load(context.Background()); found {
		t.Error("cleared record still present")
	}
	if got, found, _ := admin.Load(context.Background()); !found || got.AccessToken != "b1" {
		t.Errorf("other record = %+v, %v, want b1", got, found)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), `"a1"`) {
		t.Error("cleared token still on disk")
	}
}

func TestClear_NoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path, "", testLogger())

	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Clear() created the file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path, "", testLogger())

	if _, _, err := s.Load(context.Background()); err == nil {
		t.Fatal("Load() error = nil for invalid JSON")
	}

	// A save replaces the unreadable file.
	if err := s.Save(context.Background(), session.Session{AccessToken: "a1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got, found, err := s.Load(context.Background()); err != nil || !found || got.AccessToken != "a1" {
		t.Errorf("Load() = %+v, %v, %v", got, found, err)
	}
}

func TestLoad_EmptyRecordIsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	body := `{"version":"1","records":{"auth-storage":{"accessToken":"","refreshToken":""}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	_, found, err := NewFileStore(path, "", testLogger()).Load(context.Background())
	if err != nil || found {
		t.Errorf("Load() found = %v, err = %v, want not found", found, err)
	}
}

func TestSave_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		key := "front-" + string(rune('a'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Separate stores share only the file lock.
			s := NewFileStore(path, key, testLogger())
			for j := 0; j < 5; j++ {
				if err := s.Save(context.Background(), session.Session{AccessToken: key}); err != nil {
					t.Errorf("Save(%s) error = %v", key, err)
				}
			}
		}()
	}
	wg.Wait()

	f, err := NewFileStore(path, "", testLogger()).ReadFile()
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(f.Records) != 8 {
		t.Errorf("records = %d, want 8 (no lost update)", len(f.Records))
	}
}
