package index

import "github.com/starford/jsonvault/internal/models"

// Catalog defines the catalog operations used outside this package.
// Consumers should depend on this interface rather than the concrete *DB.
type Catalog interface {
	UpsertDocument(row DocumentRow, body string) error
	DeleteDocument(tier models.Tier, name string) error
	DeleteTier(tier models.Tier) error
	GetChecksum(tier models.Tier, name string) (string, error)
	AllChecksums(tier models.Tier) (map[string]string, error)
	ListDocuments(tier models.Tier, limit, offset int, sort string) ([]DocumentRow, int, error)
	Search(query string, limit int, tiers ...models.Tier) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
