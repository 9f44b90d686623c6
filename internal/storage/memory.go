package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/checksum"
	"github.com/starford/jsonvault/internal/models"
)

// Memory implements Provider in process memory. Contents are lost when the
// process exits. It follows the same naming and listing rules as FS.
type Memory struct {
	tier models.Tier

	mu   sync.RWMutex
	docs map[string]memoryDoc
}

type memoryDoc struct {
	data      []byte
	updatedAt time.Time
}

var _ Provider = (*Memory)(nil)

// NewMemory creates an empty in-memory provider for tier.
func NewMemory(tier models.Tier) *Memory {
	return &Memory{tier: tier, docs: make(map[string]memoryDoc)}
}

// Tier implements Provider.
func (m *Memory) Tier() models.Tier { return m.tier }

// Root implements Provider. Memory has no directory.
func (m *Memory) Root() string { return "" }

// Exists implements Provider.
func (m *Memory) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[name]
	return ok
}

// Read implements Provider.
func (m *Memory) Read(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", name, apperr.ErrNotFound)
	}
	return clone(doc.data), nil
}

// Write implements Provider.
func (m *Memory) Write(name string, content []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = memoryDoc{data: clone(content), updatedAt: time.Now()}
	return nil
}

// Delete implements Provider.
func (m *Memory) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[name]; !ok {
		return fmt.Errorf("storage: delete %s: %w", name, apperr.ErrNotFound)
	}
	delete(m.docs, name)
	return nil
}

// List implements Provider.
func (m *Memory) List(ext string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for name := range m.docs {
		if ext != "" && !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Stat implements Provider.
func (m *Memory) Stat(name string) (*models.DocumentMetadata, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, fmt.Errorf("storage: stat %s: %w", name, apperr.ErrNotFound)
	}
	return &models.DocumentMetadata{
		Name:      name,
		Tier:      m.tier,
		Size:      int64(len(doc.data)),
		Checksum:  checksum.Sum(doc.data),
		UpdatedAt: doc.updatedAt,
	}, nil
}

// ListMetadata implements Provider.
func (m *Memory) ListMetadata() ([]models.DocumentMetadata, error) {
	names, _ := m.List("")
	out := make([]models.DocumentMetadata, 0, len(names))
	for _, name := range names {
		meta, err := m.Stat(name)
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	return out, nil
}

// Wipe implements Provider.
func (m *Memory) Wipe() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]memoryDoc)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
