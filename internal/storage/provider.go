// Package storage defines the inbox file-system abstraction.
package storage

import "time"

// File describes one importable file found under the provider root.
type File struct {
	Path    string // relative to root, slash separated
	Size    int64
	ModTime time.Time
}

// Provider is the interface for inbox file operations.
type Provider interface {
	// List returns every importable file under dir (relative to root),
	// skipping hidden entries and the directories named in skip.
	List(dir string, skip ...string) ([]File, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}

// Importable reports whether name has an extension the importer accepts.
func Importable(name string) bool {
	switch extOf(name) {
	case ".md", ".txt", ".markdown":
		return true
	}
	return false
}
