package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
)

type catalogSeed struct {
	Entries []catalogSeedEntry `yaml:"entries"`
}

type catalogSeedEntry struct {
	ReferenceID string `yaml:"referenceId"`
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name"`
	UnitPrice   int64  `yaml:"unitPrice"`
	Currency    string `yaml:"currency"`
	Active      *bool  `yaml:"active"`
}

// LoadCatalogSeed decodes a YAML price list of the form
//
//	entries:
//	  - referenceId: styling-session
//	    kind: service
//	    name: Personal styling
//	    unitPrice: 250000
//	    currency: UAH
//
// Entries are active unless `active: false` is given.
func LoadCatalogSeed(r io.Reader) ([]domain.CatalogEntry, error) {
	var seed catalogSeed
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog seed: decode: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(seed.Entries))
	for i, raw := range seed.Entries {
		ref := strings.TrimSpace(raw.ReferenceID)
		if ref == "" {
			return nil, fmt.Errorf("catalog seed: entry %d: referenceId is required", i)
		}
		kind := domain.ItemKind(strings.ToLower(strings.TrimSpace(raw.Kind)))
		if kind != domain.ItemKindProduct && kind != domain.ItemKindService {
			return nil, fmt.Errorf("catalog seed: entry %d: unknown kind %q", i, raw.Kind)
		}
		if raw.UnitPrice < 0 {
			return nil, fmt.Errorf("catalog seed: entry %d: %w", i, pricing.ErrInvalidPrice)
		}
		currency := pricing.NormalizeCurrency(raw.Currency)
		if _, err := pricing.MinorUnitScale(currency); err != nil {
			return nil, fmt.Errorf("catalog seed: entry %d: %w", i, err)
		}
		active := true
		if raw.Active != nil {
			active = *raw.Active
		}
		entries = append(entries, domain.CatalogEntry{
			ReferenceID: ref,
			Kind:        kind,
			Name:        strings.TrimSpace(raw.Name),
			UnitPrice:   raw.UnitPrice,
			Currency:    currency,
			Active:      active,
		})
	}
	return entries, nil
}

// LoadCatalogSeedFile opens path and decodes it with LoadCatalogSeed.
func LoadCatalogSeedFile(path string) ([]domain.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog seed: %w", err)
	}
	defer f.Close()
	return LoadCatalogSeed(f)
}
