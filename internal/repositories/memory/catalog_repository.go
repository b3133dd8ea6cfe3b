package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// CatalogRepository serves catalog prices from a fixed set of entries.
type CatalogRepository struct {
	mu      sync.RWMutex
	entries map[string]domain.CatalogEntry
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a CatalogRepository seeded with entries.
func NewCatalogRepository(entries ...domain.CatalogEntry) *CatalogRepository {
	repo := &CatalogRepository{entries: make(map[string]domain.CatalogEntry, len(entries))}
	for _, entry := range entries {
		repo.Put(entry)
	}
	return repo
}

// Put adds or replaces an entry.
func (r *CatalogRepository) Put(entry domain.CatalogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[catalogKey(entry.ReferenceID, entry.Kind)] = entry
}

// Lookup implements repositories.CatalogRepository.
func (r *CatalogRepository) Lookup(_ context.Context, referenceID string, kind domain.ItemKind) (domain.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[catalogKey(referenceID, kind)]
	if !ok {
		return domain.CatalogEntry{}, repositories.NewNotFound("catalog.lookup", "%s %s not found", kind, referenceID)
	}
	return entry, nil
}

func catalogKey(referenceID string, kind domain.ItemKind) string {
	return string(kind) + ":" + strings.TrimSpace(referenceID)
}
