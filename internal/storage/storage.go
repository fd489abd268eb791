// Package storage manages the on-disk side of the application: one private
// directory per user under a configured data root, holding that user's
// uploaded files.
//
// The layout is deliberately flat — one level of per-user directories, each
// containing only regular files:
//
//	<dataRoot>/
//	    alice@example.com/
//	        song.mp3
//	        notes.txt
//	    bob@example.com/
//	        report.pdf
//
// The directory lifecycle is tied to the account lifecycle: Provision runs
// synchronously during registration and Decommission during account
// deletion, so a user record never exists without its directory.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store performs all filesystem operations beneath a single data root.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a Store rooted at dataRoot, creating the root directory if it
// doesn't exist yet.
func New(dataRoot string, logger *slog.Logger) (*Store, error) {
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("storage: resolving data root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating data root %s: %w", abs, err)
	}
	return &Store{root: abs, logger: logger}, nil
}

// UserRoot derives the storage directory path for the given email. The
// derivation is deterministic: the same email always maps to the same
// directory, which is what ties a user record to its files without storing
// anything extra.
func (s *Store) UserRoot(email string) string {
	return filepath.Join(s.root, sanitizeDirName(email))
}

// Provision creates the user's storage directory if it is absent.
// Idempotent: provisioning an already-provisioned user is a no-op.
func (s *Store) Provision(email string) (string, error) {
	dir := s.UserRoot(email)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: provisioning %s: %w", dir, err)
	}
	s.logger.Debug("storage provisioned", slog.String("dir", dir))
	return dir, nil
}

// Decommission deletes every regular file directly inside the user's
// storage root, then removes the now-empty directory.
//
// The layout contract is a flat directory of files. Finding a subdirectory
// means something outside this application has written there, and blindly
// recursing could destroy data we don't own — so Decommission fails
// instead, which aborts the enclosing account deletion before the user
// record is touched.
//
// A root that is already absent is treated as decommissioned, not an error.
func (s *Store) Decommission(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: reading %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("storage: unexpected subdirectory %s in %s", entry.Name(), dir)
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("storage: removing %s: %w", path, err)
		}
	}

	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("storage: removing directory %s: %w", dir, err)
	}

	s.logger.Info("storage decommissioned", slog.String("dir", dir))
	return nil
}

// SaveFile writes the contents of r to <dir>/<filename>, overwriting any
// existing file of the same name (last writer wins — re-uploading a file
// with the same name silently replaces it). Returns the number of bytes
// written.
func (s *Store) SaveFile(dir, filename string, r io.Reader) (int64, error) {
	path := filepath.Join(dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("storage: creating %s: %w", path, err)
	}

	n, err := io.Copy(dst, r)
	if err != nil {
		dst.Close()
		// A half-written file is worse than no file — remove it so the
		// record/file co-lifecycle stays intact.
		os.Remove(path)
		return 0, fmt.Errorf("storage: writing %s: %w", path, err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("storage: closing %s: %w", path, err)
	}

	return n, nil
}

// RemoveFile deletes <dir>/<filename>. A file that is already absent is not
// an error — deletion is idempotent from the caller's point of view.
func (s *Store) RemoveFile(dir, filename string) error {
	path := filepath.Join(dir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: removing %s: %w", path, err)
	}
	return nil
}

// OpenFile opens <dir>/<filename> for reading. The caller must close the
// returned file.
func (s *Store) OpenFile(dir, filename string) (*os.File, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s/%s: %w", dir, filename, err)
	}
	return f, nil
}

// SafeFilename reduces an uploaded file's original name to a bare, safe
// base name: any directory components are stripped and path separators
// replaced, so a hostile "../../etc/passwd" becomes "passwd".
// Returns "" if nothing usable remains.
func SafeFilename(name string) string {
	// Browsers on Windows may send backslash-separated paths.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// sanitizeDirName converts an email address into a directory name that is
// safe on any filesystem. Emails are already restricted by validation, but
// '/' and friends must never reach filepath.Join.
func sanitizeDirName(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	var b strings.Builder
	for _, r := range email {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '@', r == '.', r == '-', r == '_', r == '+':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
