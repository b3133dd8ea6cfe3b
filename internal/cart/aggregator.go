package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
)

var (
	errStoreRequired    = errors.New("cart: store is required")
	errClientIDRequired = errors.New("cart: client id is required")
)

// ErrPersistence wraps store failures during write-through. The in-memory cart is left unchanged.
var ErrPersistence = errors.New("cart: persistence failed")

// AggregatorDeps wires an Aggregator for one client session.
type AggregatorDeps struct {
	Store    Store
	ClientID string
	Currency string
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

// Aggregator owns one client's cart. It is not safe for concurrent use; one session drives it.
type Aggregator struct {
	store    Store
	cart     domain.Cart
	hydrated bool
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewAggregator constructs an empty aggregator. Call Hydrate before the first mutation to pick
// up a persisted cart.
func NewAggregator(deps AggregatorDeps) (*Aggregator, error) {
	if deps.Store == nil {
		return nil, errStoreRequired
	}
	clientID := strings.TrimSpace(deps.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Aggregator{
		store: deps.Store,
		cart: domain.Cart{
			ClientID: clientID,
			Currency: pricing.NormalizeCurrency(deps.Currency),
			Items:    []domain.LineItem{},
		},
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Hydrate loads the persisted cart once per session. Later calls are no-ops.
func (a *Aggregator) Hydrate(ctx context.Context) error {
	if a.hydrated {
		return nil
	}
	if _, err := a.Refresh(ctx); err != nil {
		return err
	}
	a.hydrated = true
	return nil
}

// Refresh re-reads the store and adopts the stored cart only when its version is not lower
// than the in-memory one. It reports whether the in-memory view changed.
func (a *Aggregator) Refresh(ctx context.Context) (bool, error) {
	stored, err := a.store.Load(ctx, a.cart.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if stored.Version < a.cart.Version {
		a.logger(ctx, "cart.stale_read_ignored", map[string]any{
			"clientID":      a.cart.ClientID,
			"storedVersion": stored.Version,
			"version":       a.cart.Version,
		})
		return false, nil
	}
	if stored.Version == a.cart.Version && a.hydrated {
		return false, nil
	}
	stored.ClientID = a.cart.ClientID
	if stored.Items == nil {
		stored.Items = []domain.LineItem{}
	}
	a.cart = stored
	return true, nil
}

// AddItem merges item into the cart and writes the result through.
func (a *Aggregator) AddItem(ctx context.Context, item domain.LineItem) (domain.Cart, error) {
	normalized, err := NormalizeItem(item)
	if err != nil {
		return domain.Cart{}, err
	}

	currency := a.cart.Currency
	switch {
	case normalized.Currency == "":
		normalized.Currency = currency
	case currency == "" || len(a.cart.Items) == 0:
		currency = normalized.Currency
	case normalized.Currency != currency:
		return domain.Cart{}, fmt.Errorf("%w: cart is %s, item is %s", pricing.ErrCurrencyMismatch, currency, normalized.Currency)
	}

	items, err := Merge(a.cart.Items, normalized)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, err := pricing.Subtotal(items); err != nil {
		return domain.Cart{}, err
	}
	return a.commit(ctx, items, currency)
}

// UpdateQuantity sets a product quantity, clamping values below MinQuantity.
func (a *Aggregator) UpdateQuantity(ctx context.Context, itemID string, quantity int) (domain.Cart, error) {
	items, err := SetQuantity(a.cart.Items, itemID, quantity)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, err := pricing.Subtotal(items); err != nil {
		return domain.Cart{}, err
	}
	return a.commit(ctx, items, a.cart.Currency)
}

// RemoveItem drops the item with the given identifier. Missing items are not an error.
func (a *Aggregator) RemoveItem(ctx context.Context, itemID string) (domain.Cart, error) {
	items := Remove(a.cart.Items, itemID)
	if len(items) == len(a.cart.Items) {
		return a.Snapshot(), nil
	}
	return a.commit(ctx, items, a.cart.Currency)
}

// Clear empties the cart, typically after a successful checkout.
func (a *Aggregator) Clear(ctx context.Context) (domain.Cart, error) {
	return a.commit(ctx, []domain.LineItem{}, a.cart.Currency)
}

// Snapshot returns a copy safe to hand to checkout.
func (a *Aggregator) Snapshot() domain.Cart {
	return a.cart.Clone()
}

// Subtotal recomputes the cart subtotal from its items.
func (a *Aggregator) Subtotal() (int64, error) {
	return pricing.Subtotal(a.cart.Items)
}

func (a *Aggregator) commit(ctx context.Context, items []domain.LineItem, currency string) (domain.Cart, error) {
	next := a.cart.Clone()
	next.Items = items
	next.Currency = currency
	next.UpdatedAt = a.now()
	next.Version = a.nextVersion(next.UpdatedAt)

	applied, err := a.store.Save(ctx, next)
	if err != nil {
		a.logger(ctx, "cart.persist_failed", map[string]any{
			"clientID": next.ClientID,
			"error":    err.Error(),
		})
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !applied {
		a.logger(ctx, "cart.write_superseded", map[string]any{
			"clientID": next.ClientID,
			"version":  next.Version,
		})
		// The stored cart is newer than this write; converge on it.
		if _, err := a.Refresh(ctx); err != nil {
			return domain.Cart{}, err
		}
		return a.Snapshot(), nil
	}
	a.cart = next
	return a.Snapshot(), nil
}

// nextVersion stamps writes with wall-clock milliseconds so sessions sharing a store order
// their writes, and never goes backwards within a session.
func (a *Aggregator) nextVersion(at time.Time) int64 {
	stamp := at.UnixMilli()
	if stamp <= a.cart.Version {
		stamp = a.cart.Version + 1
	}
	return stamp
}
