package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	pfirestore "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/firestore"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const catalogCollection = "catalog"

// CatalogRepository reads authoritative prices maintained by the content team. Documents are keyed
// "<kind>:<referenceId>".
type CatalogRepository struct {
	entries *pfirestore.Collection[catalogDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		entries: pfirestore.NewCollection[catalogDocument](provider, catalogCollection, nil),
	}, nil
}

func (r *CatalogRepository) Lookup(ctx context.Context, referenceID string, kind domain.ItemKind) (domain.CatalogEntry, error) {
	referenceID = strings.TrimSpace(referenceID)
	doc, err := r.entries.Get(ctx, string(kind)+":"+referenceID)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	return domain.CatalogEntry{
		ReferenceID: referenceID,
		Kind:        kind,
		Name:        doc.Data.Name,
		UnitPrice:   doc.Data.UnitPrice,
		Currency:    strings.ToUpper(doc.Data.Currency),
		Active:      doc.Data.Active,
	}, nil
}

// Put writes an entry, replacing any existing one. Used by seeding tools and tests.
func (r *CatalogRepository) Put(ctx context.Context, entry domain.CatalogEntry) error {
	ref, err := r.entries.Doc(ctx, string(entry.Kind)+":"+strings.TrimSpace(entry.ReferenceID))
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, catalogDocument{
		ReferenceID: entry.ReferenceID,
		Kind:        string(entry.Kind),
		Name:        entry.Name,
		UnitPrice:   entry.UnitPrice,
		Currency:    entry.Currency,
		Active:      entry.Active,
	})
	return pfirestore.WrapError("catalog.put", err)
}
