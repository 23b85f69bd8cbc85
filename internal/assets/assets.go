// Package assets is a byte-addressable blob store for generated images and
// composed documents, rooted in the home directory. Callers hold opaque
// handles; only this package knows the path layout.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fableforge/fableforge/internal/home"
)

// StorageError indicates an asset persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists blobs under the home assets directory.
type Store struct {
	dir *home.Dir
}

// NewStore creates an asset store rooted in the given home directory.
func NewStore(dir *home.Dir) *Store {
	return &Store{dir: dir}
}

// Put writes data and returns an opaque handle. The extension is derived
// from the declared mime type, cross-checked against the sniffed format for
// raster images.
func (s *Store) Put(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", &StorageError{Op: "put", Err: fmt.Errorf("empty payload")}
	}

	ext, err := extensionFor(data, mimeType)
	if err != nil {
		return "", err
	}

	handle := uuid.New().String() + ext
	path := s.path(handle)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &StorageError{Op: "put", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &StorageError{Op: "put", Err: err}
	}
	return handle, nil
}

// Read returns the bytes for a handle.
func (s *Store) Read(handle string) ([]byte, error) {
	data, err := os.ReadFile(s.path(handle))
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return data, nil
}

// Exists reports whether a handle resolves to a stored blob.
func (s *Store) Exists(handle string) bool {
	if handle == "" {
		return false
	}
	_, err := os.Stat(s.path(handle))
	return err == nil
}

// URL returns a servable URL for a handle.
func (s *Store) URL(handle string) string {
	return "/assets/" + handle
}

// Path returns the filesystem path for a handle. Handles are flat names;
// anything path-like is rejected at read time by the join staying inside
// the assets dir.
func (s *Store) path(handle string) string {
	return filepath.Join(s.dir.AssetsPath(), filepath.Base(handle))
}

func extensionFor(data []byte, mimeType string) (string, error) {
	sniffed := SniffImage(data)
	switch {
	case sniffed != "":
		return "." + sniffed, nil
	case strings.HasPrefix(mimeType, "application/pdf"):
		return ".pdf", nil
	default:
		return "", &StorageError{Op: "put", Err: fmt.Errorf("unsupported format %q", mimeType)}
	}
}

// SniffImage returns "png" or "jpg" from magic bytes, or "" if the payload
// is neither of the two supported raster formats.
func SniffImage(data []byte) string {
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' {
		return "png"
	}
	if len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff {
		return "jpg"
	}
	return ""
}
