package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// CatalogRepository reads authoritative prices from catalog_entries.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// Lookup implements repositories.CatalogRepository.
func (r *CatalogRepository) Lookup(ctx context.Context, referenceID string, kind domain.ItemKind) (domain.CatalogEntry, error) {
	entry := domain.CatalogEntry{ReferenceID: strings.TrimSpace(referenceID), Kind: kind}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT name, unit_price, currency, active
		FROM catalog_entries
		WHERE kind = $1 AND reference_id = $2`, string(kind), entry.ReferenceID,
	).Scan(&entry.Name, &entry.UnitPrice, &entry.Currency, &entry.Active)
	if err != nil {
		return domain.CatalogEntry{}, mapError("catalog.lookup", err)
	}
	entry.Currency = strings.ToUpper(strings.TrimSpace(entry.Currency))
	return entry, nil
}

// Put upserts an entry. Used by seeding tools and tests.
func (r *CatalogRepository) Put(ctx context.Context, entry domain.CatalogEntry) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO catalog_entries (kind, reference_id, name, unit_price, currency, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kind, reference_id) DO UPDATE
		SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price,
			currency = EXCLUDED.currency, active = EXCLUDED.active`,
		string(entry.Kind), strings.TrimSpace(entry.ReferenceID), entry.Name, entry.UnitPrice,
		strings.ToUpper(entry.Currency), entry.Active,
	)
	return mapError("catalog.put", err)
}
