package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/jsonvault/internal/models"
)

// Sort orders accepted by ListDocuments.
const (
	SortName      = "name"
	SortUpdatedAt = "updated_at"
	SortSize      = "size"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Tier      models.Tier `json:"tier"`
	Name      string      `json:"name"`
	Title     string      `json:"title"`
	Checksum  string      `json:"checksum"`
	Size      int64       `json:"size"`
	ValidJSON bool        `json:"valid_json"`
	Keys      []string    `json:"keys"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Tier    models.Tier `json:"tier"`
	Name    string      `json:"name"`
	Title   string      `json:"title"`
	Snippet string      `json:"snippet"`
}

// UpsertDocument inserts or replaces a catalog entry.
func (db *DB) UpsertDocument(r DocumentRow, body string) error {
	keys := r.Keys
	if keys == nil {
		keys = []string{}
	}
	keysJSON, _ := json.Marshal(keys)
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}

	_, err := db.conn.Exec(`
		INSERT INTO documents (tier, name, title, checksum, size, valid_json, keys, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tier, name) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			size       = excluded.size,
			valid_json = excluded.valid_json,
			keys       = excluded.keys,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.Tier.String(), r.Name, r.Title, r.Checksum, r.Size, r.ValidJSON, string(keysJSON), body, r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}
	return nil
}

// DeleteDocument removes one catalog entry. Removing an absent entry is not an error.
func (db *DB) DeleteDocument(tier models.Tier, name string) error {
	if _, err := db.conn.Exec(`DELETE FROM documents WHERE tier = ? AND name = ?`, tier.String(), name); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return nil
}

// DeleteTier removes every catalog entry of a tier.
func (db *DB) DeleteTier(tier models.Tier) error {
	if _, err := db.conn.Exec(`DELETE FROM documents WHERE tier = ?`, tier.String()); err != nil {
		return fmt.Errorf("index: delete tier: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(tier models.Tier, name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE tier = ? AND name = ?`, tier.String(), name).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns name → checksum for every catalogued document of a tier.
func (db *DB) AllChecksums(tier models.Tier) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM documents WHERE tier = ?`, tier.String())
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, cs string
		if err := rows.Scan(&name, &cs); err != nil {
			return nil, err
		}
		out[name] = cs
	}
	return out, rows.Err()
}

// ListDocuments returns one page of catalog entries for a tier and the total count.
func (db *DB) ListDocuments(tier models.Tier, limit, offset int, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	var order string
	switch sort {
	case SortUpdatedAt:
		order = "updated_at DESC, name"
	case SortSize:
		order = "size DESC, name"
	default:
		order = "name"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents WHERE tier = ?`, tier.String()).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT tier, name, title, checksum, size, valid_json, keys, updated_at
		FROM documents
		WHERE tier = ?
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, tier.String(), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	out := []DocumentRow{}
	for rows.Next() {
		var (
			r        DocumentRow
			tierName string
			keysJSON string
		)
		if err := rows.Scan(&tierName, &r.Name, &r.Title, &r.Checksum, &r.Size, &r.ValidJSON, &keysJSON, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if r.Tier, err = models.ParseTier(tierName); err != nil {
			return nil, 0, fmt.Errorf("index: row %s: %w", r.Name, err)
		}
		_ = json.Unmarshal([]byte(keysJSON), &r.Keys)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Search performs a case-insensitive substring search over names, titles and
// bodies. With no tiers given every tier is searched.
func (db *DB) Search(query string, limit int, tiers ...models.Tier) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"

	q := `
		SELECT tier, name, title, substr(body, 1, 200)
		FROM documents
		WHERE (name LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')`
	args := []any{like, like, like}
	if len(tiers) > 0 {
		q += ` AND tier IN (?` + strings.Repeat(`, ?`, len(tiers)-1) + `)`
		for _, t := range tiers {
			args = append(args, t.String())
		}
	}
	q += ` ORDER BY tier, name LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var (
			r        SearchResult
			tierName string
		)
		if err := rows.Scan(&tierName, &r.Name, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		if r.Tier, err = models.ParseTier(tierName); err != nil {
			return nil, fmt.Errorf("index: row %s: %w", r.Name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
