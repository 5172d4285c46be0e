// Package state persists sessions in a JSON file shared by every vitrina
// process of the user.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// FileVersion is the layout version written to new files.
const FileVersion = "1"

// File is the on-disk layout. Records are keyed by storage key so several
// front ends can share one file.
type File struct {
	Version   string                     `json:"version"`
	Records   map[string]session.Session `json:"records"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// FileStore stores one session record under a key in a JSON file.
//
// Writes are read-modify-write under an in-process mutex and a flock on
// path+".lock", and land atomically (tmp, fsync, rename). The file is
// created with 0600 permissions. No backup copy is kept, so a cleared
// session does not survive anywhere on disk.
type FileStore struct {
	path   string
	key    string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ session.Storage = (*FileStore)(nil)

// NewFileStore creates a FileStore for key in the file at path.
func NewFileStore(path, key string, logger *slog.Logger) *FileStore {
	if key == "" {
		key = session.StorageKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		key:    key,
		logger: logger,
	}
}

// Path returns the configured file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored session. A missing file or record is not an error.
func (s *FileStore) Load(context.Context) (session.Session, bool, error) {
	f, err := s.read()
	if err != nil {
		return session.Session{}, false, err
	}
	sess, ok := f.Records[s.key]
	if !ok || sess.IsZero() {
		return session.Session{}, false, nil
	}
	return sess, true, nil
}

// Save stores sess under the key, keeping other records.
func (s *FileStore) Save(_ context.Context, sess session.Session) error {
	return s.update(func(f *File) {
		f.Records[s.key] = sess
	})
}

// Clear removes the record. Other records are kept.
func (s *FileStore) Clear(context.Context) error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return s.update(func(f *File) {
		delete(f.Records, s.key)
	})
}

// ReadFile returns the whole file, or a fresh layout if it does not exist.
func (s *FileStore) ReadFile() (*File, error) {
	return s.read()
}

func (s *FileStore) read() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newFile(time.Now().UTC()), nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	// Unix permission bits mean nothing on Windows.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			if mode := info.Mode().Perm(); mode&0077 != 0 {
				s.logger.Warn("session file is readable by other users, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if f.Records == nil {
		f.Records = make(map[string]session.Session)
	}
	return &f, nil
}

// update applies fn to the current file contents and writes the result.
func (s *FileStore) update(fn func(f *File)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	lock, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lock.Close() }()

	if err := lockFile(lock.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer unlockFile(lock.Fd()) //nolint:errcheck

	f, err := s.read()
	if err != nil {
		// An unreadable file is replaced rather than blocking every login.
		s.logger.Warn("discarding unreadable session file", "path", s.path, "error", err)
		f = newFile(time.Now().UTC())
	}
	fn(f)
	f.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on session file", "error", err)
	}

	s.logger.Debug("session file written", "path", s.path, "records", len(f.Records))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over the
// target. The temp file is removed on any error.
func (s *FileStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to session file: %w", err)
	}
	return nil
}

func newFile(now time.Time) *File {
	return &File{
		Version:   FileVersion,
		Records:   make(map[string]session.Session),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
