package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/storage"
)

// Change kinds reported by the watcher.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
	KindWiped   = "wiped"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven catalog change.
// The watcher reports KindCreated, KindUpdated or KindDeleted; KindWiped is
// only emitted by callers that clear a whole tier.
type EventCallback func(kind string, tier models.Tier, name string)

// Watch starts an fsnotify watcher on every available tier root and keeps the
// catalog in step with changes made outside this process, such as documents
// delivered by the cloud-sync agent. It runs until ctx is cancelled and calls
// cb (if non-nil) after each catalog mutation.
//
// Roots are flat, so only the root directories themselves are watched. Rename
// events trigger a debounced reconciliation pass over the affected tier.
// Providers without a directory are skipped.
func Watch(ctx context.Context, c Catalog, store *storage.Store, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	roots := make(map[string]storage.Provider)
	for _, tier := range models.Tiers {
		p, err := store.Provider(tier)
		if err != nil || p.Root() == "" {
			continue
		}
		if err := os.MkdirAll(p.Root(), 0o755); err != nil {
			return fmt.Errorf("watcher: create %s root: %w", tier, err)
		}
		if err := w.Add(p.Root()); err != nil {
			return fmt.Errorf("watcher: watch %s root: %w", tier, err)
		}
		roots[p.Root()] = p
		logger.Info("watcher: started", slog.String("tier", tier.String()), slog.String("root", p.Root()))
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	pending := make(map[models.Tier]storage.Provider)

	scheduleReconcile := func(p storage.Provider) {
		pending[p.Tier()] = p
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			for tier, p := range pending {
				reconcile(c, p, logger, cb)
				delete(pending, tier)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			p, ok := roots[filepath.Dir(ev.Name)]
			if !ok {
				continue
			}
			name := filepath.Base(ev.Name)
			if storage.ValidateName(name) != nil {
				continue
			}
			tier := p.Tier()

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, err := refresh(c, p, name)
				if err != nil {
					logger.Warn("watcher: index failed", slog.String("tier", tier.String()), slog.String("name", name), slog.String("error", err.Error()))
					continue
				}
				if kind == "" {
					continue
				}
				logger.Debug("watcher: indexed", slog.String("tier", tier.String()), slog.String("name", name), slog.String("op", kind))
				if cb != nil {
					cb(kind, tier, name)
				}

			case ev.Op&fsnotify.Remove != 0:
				forget(c, p, name, logger, cb)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old name only; the new name
				// arrives as Create if it stays inside a watched root.
				forget(c, p, name, logger, cb)
				scheduleReconcile(p)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refresh re-reads one document and upserts it when its checksum changed.
// It returns the change kind, or "" when nothing changed or the file is gone.
func refresh(c Catalog, p storage.Provider, name string) (string, error) {
	meta, err := p.Stat(name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrRead) {
			// Gone already, or a directory; Remove/reconcile handles the rest.
			return "", nil
		}
		return "", err
	}
	prev, err := c.GetChecksum(p.Tier(), name)
	if err != nil {
		return "", err
	}
	if prev == meta.Checksum {
		return "", nil
	}
	data, err := p.Read(name)
	if err != nil {
		return "", err
	}
	if err := IndexDocument(c, *meta, data); err != nil {
		return "", err
	}
	if prev == "" {
		return KindCreated, nil
	}
	return KindUpdated, nil
}

// forget drops a catalog entry whose file disappeared.
func forget(c Catalog, p storage.Provider, name string, logger *slog.Logger, cb EventCallback) {
	prev, err := c.GetChecksum(p.Tier(), name)
	if err != nil || prev == "" {
		return
	}
	if err := c.DeleteDocument(p.Tier(), name); err != nil {
		logger.Warn("watcher: delete failed", slog.String("tier", p.Tier().String()), slog.String("name", name), slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: deleted", slog.String("tier", p.Tier().String()), slog.String("name", name))
	if cb != nil {
		cb(KindDeleted, p.Tier(), name)
	}
}

// reconcile removes catalog entries without a file on disk and indexes files
// missing from the catalog.
func reconcile(c Catalog, p storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := c.AllChecksums(p.Tier())
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := p.ListMetadata()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]models.DocumentMetadata, len(metas))
	for _, m := range metas {
		disk[m.Name] = m
	}

	for name := range checksums {
		if _, ok := disk[name]; ok {
			continue
		}
		if err := c.DeleteDocument(p.Tier(), name); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("name", name))
			if cb != nil {
				cb(KindDeleted, p.Tier(), name)
			}
		}
	}

	for name, m := range disk {
		prev, known := checksums[name]
		if prev == m.Checksum {
			continue
		}
		data, err := p.Read(name)
		if err != nil {
			continue
		}
		if err := IndexDocument(c, m, data); err != nil {
			continue
		}
		logger.Debug("reconcile: indexed", slog.String("name", name))
		if cb != nil {
			kind := KindUpdated
			if !known {
				kind = KindCreated
			}
			cb(kind, p.Tier(), name)
		}
	}
}
