package storage

import (
	"fmt"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/models"
)

// Roots holds the two fixed root directories. An empty Synced path means the
// cloud container is unavailable on this device.
type Roots struct {
	Synced  string
	Private string
}

// Store routes document operations to the root selected by a tier.
// It keeps no state beyond the two providers.
type Store struct {
	providers map[models.Tier]Provider
}

// NewStore builds a Store over local directories. The private root is required.
func NewStore(roots Roots) (*Store, error) {
	private, err := NewFS(roots.Private, models.Private)
	if err != nil {
		return nil, err
	}
	providers := map[models.Tier]Provider{models.Private: private}
	if roots.Synced != "" {
		synced, err := NewFS(roots.Synced, models.Synced)
		if err != nil {
			return nil, err
		}
		providers[models.Synced] = synced
	}
	return &Store{providers: providers}, nil
}

// Storage backends accepted by Open.
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
)

// Open builds a Store for backend. The fs backend (also selected by an empty
// string) uses the directories in roots. The memory backend keeps documents
// in process memory; roots then only decide which tiers exist, so an empty
// Synced still makes the synced tier unavailable.
func Open(backend string, roots Roots) (*Store, error) {
	switch backend {
	case "", BackendFS:
		return NewStore(roots)
	case BackendMemory:
		providers := []Provider{NewMemory(models.Private)}
		if roots.Synced != "" {
			providers = append(providers, NewMemory(models.Synced))
		}
		return NewStoreWithProviders(providers...), nil
	default:
		return nil, fmt.Errorf("storage: %w: unknown backend %q", apperr.ErrInvalidArgument, backend)
	}
}

// NewStoreWithProviders builds a Store from arbitrary providers, keyed by
// their own Tier.
func NewStoreWithProviders(providers ...Provider) *Store {
	m := make(map[models.Tier]Provider, len(providers))
	for _, p := range providers {
		m[p.Tier()] = p
	}
	return &Store{providers: m}
}

// Provider returns the provider for tier.
func (s *Store) Provider(tier models.Tier) (Provider, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("storage: %w: %s", apperr.ErrInvalidArgument, tier)
	}
	p, ok := s.providers[tier]
	if !ok {
		return nil, fmt.Errorf("storage: %w: %s", apperr.ErrTierUnavailable, tier)
	}
	return p, nil
}

// Available reports whether tier has a configured root.
func (s *Store) Available(tier models.Tier) bool {
	_, ok := s.providers[tier]
	return ok
}

// Get reads the full contents of the named document.
func (s *Store) Get(tier models.Tier, name string) ([]byte, error) {
	p, err := s.Provider(tier)
	if err != nil {
		return nil, err
	}
	return p.Read(name)
}

// Set creates or overwrites the named document.
func (s *Store) Set(tier models.Tier, name string, content []byte) error {
	p, err := s.Provider(tier)
	if err != nil {
		return err
	}
	return p.Write(name, content)
}

// Remove deletes the named document.
func (s *Store) Remove(tier models.Tier, name string) error {
	p, err := s.Provider(tier)
	if err != nil {
		return err
	}
	return p.Delete(name)
}

// List returns the document names stored under tier, optionally filtered by
// extension.
func (s *Store) List(tier models.Tier, ext string) ([]string, error) {
	p, err := s.Provider(tier)
	if err != nil {
		return nil, err
	}
	return p.List(ext)
}

// Wipe removes every document stored under tier.
func (s *Store) Wipe(tier models.Tier) error {
	p, err := s.Provider(tier)
	if err != nil {
		return err
	}
	return p.Wipe()
}
