package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/checksum"
	"github.com/starford/jsonvault/internal/models"
)

// tmpPrefix marks in-flight atomic writes. Such files are never listed.
const tmpPrefix = ".jsonvault-tmp-"

// FS implements Provider backed by a single local directory.
type FS struct {
	root string // absolute path to the tier root
	tier models.Tier
}

var _ Provider = (*FS)(nil)

// NewFS creates a provider rooted at root. The directory does not have to
// exist yet (it is created on the first write), but if something exists at
// root it must be a directory.
func NewFS(root string, tier models.Tier) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: %s root is empty", tier)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, tier: tier}, nil
}

// Tier implements Provider.
func (f *FS) Tier() models.Tier { return f.tier }

// Root implements Provider.
func (f *FS) Root() string { return f.root }

// ValidateName rejects names that are not a single plain filename.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("storage: %w: %q", apperr.ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("storage: %w: %q contains a path separator", apperr.ErrInvalidName, name)
	case strings.HasPrefix(name, tmpPrefix):
		return fmt.Errorf("storage: %w: %q uses a reserved prefix", apperr.ErrInvalidName, name)
	}
	return nil
}

// path resolves name against the root. Only validated names reach the
// filesystem, so the result never leaves the root.
func (f *FS) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(f.root, name), nil
}

// Exists reports whether a regular document with this name is present.
// Invalid names never exist.
func (f *FS) Exists(name string) bool {
	abs, err := f.path(name)
	if err != nil {
		return false
	}
	info, err := os.Lstat(abs)
	return err == nil && !info.IsDir()
}

// Read returns the raw bytes of a document.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w: %w", name, apperr.ErrNotFound, err)
		}
		return nil, fmt.Errorf("storage: read %s: %w: %w", name, apperr.ErrRead, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w: %w", apperr.ErrWrite, err)
	}

	tmp, err := os.CreateTemp(f.root, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w: %w", apperr.ErrWrite, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w: %w", name, apperr.ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync %s: %w: %w", name, apperr.ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w: %w", apperr.ErrWrite, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename %s: %w: %w", name, apperr.ErrWrite, err)
	}
	success = true
	return nil
}

// Delete removes a document.
func (f *FS) Delete(name string) error {
	abs, err := f.path(name)
	if err != nil {
		return err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w: %w", name, apperr.ErrNotFound, err)
		}
		return fmt.Errorf("storage: delete %s: %w: %w", name, apperr.ErrDelete, err)
	}
	if info.IsDir() {
		return fmt.Errorf("storage: delete %s: %w: is a directory", name, apperr.ErrDelete)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w: %w", name, apperr.ErrDelete, err)
	}
	return nil
}

// List returns the names of the documents directly under the root.
// A root that does not exist yet lists as empty.
func (f *FS) List(ext string) ([]string, error) {
	entries, err := f.entries()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if ext != "" && !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Stat returns metadata for one document, including its checksum.
func (f *FS) Stat(name string) (*models.DocumentMetadata, error) {
	data, err := f.Read(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filepath.Join(f.root, name))
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w: %w", name, apperr.ErrRead, err)
	}
	return &models.DocumentMetadata{
		Name:      name,
		Tier:      f.tier,
		Size:      info.Size(),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// ListMetadata returns metadata for every document under the root.
// Documents that vanish between listing and reading are skipped.
func (f *FS) ListMetadata() ([]models.DocumentMetadata, error) {
	names, err := f.List("")
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentMetadata, 0, len(names))
	for _, name := range names {
		meta, err := f.Stat(name)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("storage: list metadata: %w: %w", apperr.ErrList, err)
		}
		out = append(out, *meta)
	}
	return out, nil
}

// Wipe removes every document under the root, including leftover temp files.
// The root directory itself is kept.
func (f *FS) Wipe() error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("storage: wipe: %w: %w", apperr.ErrDelete, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(f.root, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: wipe %s: %w: %w", e.Name(), apperr.ErrDelete, err)
		}
	}
	return nil
}

// entries returns the non-directory, non-temporary entries under the root.
func (f *FS) entries() ([]fs.DirEntry, error) {
	all, err := os.ReadDir(f.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w: %w", f.tier, apperr.ErrList, err)
	}
	out := all[:0]
	for _, e := range all {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
