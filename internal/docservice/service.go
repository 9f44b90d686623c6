// Package docservice coordinates the document store with the catalog and
// change notifications.
package docservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/jsonvault/internal/checksum"
	"github.com/starford/jsonvault/internal/index"
	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/storage"
)

// EventFunc receives successful mutations. kind is created, updated, deleted
// or wiped; name is empty for wiped.
type EventFunc func(kind string, tier models.Tier, name string)

// Service coordinates storage, catalog and event operations. Reads always go
// to the store; the catalog only mirrors what the store reports.
type Service struct {
	store   *storage.Store
	catalog index.Catalog
	logger  *slog.Logger
	onEvent EventFunc
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog mirrors mutations into c and enables Catalog and Search.
func WithCatalog(c index.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithLogger sets the logger used for catalog failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents registers fn to be called after every successful mutation.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// NewService creates a new document service.
func NewService(store *storage.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying document store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Get returns the full contents of a document.
func (s *Service) Get(_ context.Context, tier models.Tier, name string) ([]byte, error) {
	return s.store.Get(tier, name)
}

// Set writes a document and mirrors it into the catalog.
func (s *Service) Set(_ context.Context, tier models.Tier, name string, content []byte) error {
	existed := s.exists(tier, name)
	if err := s.store.Set(tier, name, content); err != nil {
		return err
	}
	s.indexDocument(tier, name, content)

	kind := index.KindCreated
	if existed {
		kind = index.KindUpdated
	}
	s.emit(kind, tier, name)
	return nil
}

// Remove deletes a document and its catalog entry.
func (s *Service) Remove(_ context.Context, tier models.Tier, name string) error {
	if err := s.store.Remove(tier, name); err != nil {
		return err
	}
	if s.catalog != nil {
		if err := s.catalog.DeleteDocument(tier, name); err != nil {
			s.logger.Warn("catalog delete failed", slog.String("tier", tier.String()), slog.String("name", name), slog.String("error", err.Error()))
		}
	}
	s.emit(index.KindDeleted, tier, name)
	return nil
}

// List returns the names stored under tier, read straight from disk.
func (s *Service) List(_ context.Context, tier models.Tier, ext string) ([]string, error) {
	return s.store.List(tier, ext)
}

// Wipe removes every document of a tier and its catalog entries.
func (s *Service) Wipe(_ context.Context, tier models.Tier) error {
	if err := s.store.Wipe(tier); err != nil {
		return err
	}
	if s.catalog != nil {
		if err := s.catalog.DeleteTier(tier); err != nil {
			s.logger.Warn("catalog wipe failed", slog.String("tier", tier.String()), slog.String("error", err.Error()))
		}
	}
	s.emit(index.KindWiped, tier, "")
	return nil
}

// Catalog returns one page of catalog entries for tier.
func (s *Service) Catalog(_ context.Context, tier models.Tier, limit, offset int, sort string) ([]index.DocumentRow, int, error) {
	if s.catalog == nil {
		return []index.DocumentRow{}, 0, nil
	}
	return s.catalog.ListDocuments(tier, limit, offset, sort)
}

// Search delegates substring search to the catalog.
func (s *Service) Search(_ context.Context, query string, limit int, tiers ...models.Tier) ([]index.SearchResult, error) {
	if s.catalog == nil {
		return []index.SearchResult{}, nil
	}
	return s.catalog.Search(query, limit, tiers...)
}

func (s *Service) exists(tier models.Tier, name string) bool {
	p, err := s.store.Provider(tier)
	if err != nil {
		return false
	}
	return p.Exists(name)
}

// indexDocument mirrors freshly written content into the catalog. The write
// has already succeeded, so failures are only logged.
func (s *Service) indexDocument(tier models.Tier, name string, content []byte) {
	if s.catalog == nil {
		return
	}
	meta := models.DocumentMetadata{
		Name:      name,
		Tier:      tier,
		Size:      int64(len(content)),
		Checksum:  checksum.Sum(content),
		UpdatedAt: time.Now(),
	}
	if err := index.IndexDocument(s.catalog, meta, content); err != nil {
		s.logger.Warn("catalog index failed", slog.String("tier", tier.String()), slog.String("name", name), slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind string, tier models.Tier, name string) {
	if s.onEvent != nil {
		s.onEvent(kind, tier, name)
	}
}
