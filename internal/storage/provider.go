// Package storage implements the dual-root document store.
package storage

import "github.com/starford/jsonvault/internal/models"

// Provider is the interface for document operations against one tier root.
// Names are plain filenames; nested paths are rejected.
type Provider interface {
	// Tier reports which tier this provider serves.
	Tier() models.Tier
	// Root returns the absolute root directory, or "" when the provider is
	// not backed by the filesystem.
	Root() string
	// Exists reports whether the named document is present.
	Exists(name string) bool
	// Read returns the full contents of the named document.
	Read(name string) ([]byte, error)
	// Write atomically replaces the named document, creating the root if needed.
	Write(name string, content []byte) error
	// Delete removes the named document.
	Delete(name string) error
	// List returns document names directly under the root, sorted.
	// A non-empty ext keeps only names ending in ext.
	List(ext string) ([]string, error)
	// Stat returns metadata for the named document.
	Stat(name string) (*models.DocumentMetadata, error)
	// ListMetadata returns metadata for every document under the root.
	ListMetadata() ([]models.DocumentMetadata, error)
	// Wipe removes every document under the root.
	Wipe() error
}
