package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/parser"
	"github.com/starford/jsonvault/internal/storage"
)

// IndexDocument summarises data and upserts it into the catalog.
// Exported so that the document service, sync and the watcher share it.
func IndexDocument(c Catalog, meta models.DocumentMetadata, data []byte) error {
	res := parser.Parse(data)
	row := DocumentRow{
		Tier:      meta.Tier,
		Name:      meta.Name,
		Title:     res.Title,
		Checksum:  meta.Checksum,
		Size:      meta.Size,
		ValidJSON: res.Valid,
		Keys:      res.Keys,
		UpdatedAt: meta.UpdatedAt,
	}
	return c.UpsertDocument(row, res.Body)
}

// Sync walks every available tier root and brings the catalog up to date:
//   - new/changed documents are summarised and upserted
//   - documents removed from disk are deleted from the catalog
//
// A failing tier does not stop the others; all failures are joined.
func Sync(c Catalog, store *storage.Store, logger *slog.Logger) error {
	var errs []error
	for _, tier := range models.Tiers {
		p, err := store.Provider(tier)
		if err != nil {
			logger.Debug("sync: tier skipped", slog.String("tier", tier.String()), slog.String("reason", err.Error()))
			continue
		}
		if err := syncTier(c, p, logger); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", tier, err))
		}
	}
	return errors.Join(errs...)
}

func syncTier(c Catalog, p storage.Provider, logger *slog.Logger) error {
	metas, err := p.ListMetadata()
	if err != nil {
		return err
	}

	checksums, err := c.AllChecksums(p.Tier())
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Name] = struct{}{}

		if checksums[m.Name] == m.Checksum {
			continue
		}

		data, err := p.Read(m.Name)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("tier", m.Tier.String()), slog.String("name", m.Name), slog.String("error", err.Error()))
			continue
		}
		if err := IndexDocument(c, m, data); err != nil {
			logger.Warn("sync: index failed", slog.String("tier", m.Tier.String()), slog.String("name", m.Name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("tier", m.Tier.String()), slog.String("name", m.Name))
		}
	}

	for name := range checksums {
		if _, ok := disk[name]; ok {
			continue
		}
		if err := c.DeleteDocument(p.Tier(), name); err != nil {
			logger.Warn("sync: delete failed", slog.String("tier", p.Tier().String()), slog.String("name", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("tier", p.Tier().String()), slog.String("name", name))
		}
	}

	return nil
}
