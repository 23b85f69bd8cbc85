// Package home manages the fableforge home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the fableforge home directory.
	DefaultDirName = ".fableforge"

	// AssetsDirName is the subdirectory for stored image assets.
	AssetsDirName = "assets"

	// ExportsDirName is the subdirectory for composed PDF documents.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the fableforge home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.fableforge).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// AssetsPath returns the path to the assets directory.
func (d *Dir) AssetsPath() string {
	return filepath.Join(d.path, AssetsDirName)
}

// ExportsPath returns the path to the exports directory.
func (d *Dir) ExportsPath() string {
	return filepath.Join(d.path, ExportsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.AssetsPath(), d.ExportsPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ExportPath returns the path for a composed document of a book.
// kind is "interior" or "cover".
func (d *Dir) ExportPath(bookID, kind string) string {
	return filepath.Join(d.ExportsPath(), fmt.Sprintf("%s_%s.pdf", bookID, kind))
}
