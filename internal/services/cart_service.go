package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

var (
	// ErrCartInvalidClient indicates a missing or malformed client identifier.
	ErrCartInvalidClient = errors.New("cart: invalid client id")
	// ErrCartUnknownItem indicates the catalog has no active entry for the reference.
	ErrCartUnknownItem = errors.New("cart: unknown catalog item")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Store         cart.Store
	Catalog       repositories.CatalogRepository
	DefaultLocale string
	Clock         func() time.Time
	NewClientID   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	store       cart.Store
	catalog     repositories.CatalogRepository
	locale      string
	clock       func() time.Time
	newClientID func() string
	logger      func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService. Each call drives a short-lived Aggregator hydrated
// from the store, so concurrent requests for one client resolve by cart version.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Store == nil {
		return nil, errors.New("cart service: store is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewClientID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	locale := strings.TrimSpace(deps.DefaultLocale)
	if locale == "" {
		locale = "uk"
	}
	return &cartService{
		store:       deps.Store,
		catalog:     deps.Catalog,
		locale:      locale,
		clock:       clock,
		newClientID: newID,
		logger:      logger,
	}, nil
}

func (s *cartService) NewClientID() string {
	return s.newClientID()
}

func (s *cartService) Get(ctx context.Context, clientID string) (CartView, error) {
	aggregator, err := s.session(ctx, clientID, "")
	if err != nil {
		return CartView{}, err
	}
	return s.view(aggregator)
}

// AddItem prices the item from the catalog when one is configured and merges it into the cart.
func (s *cartService) AddItem(ctx context.Context, cmd CartItemCommand) (CartView, error) {
	aggregator, err := s.session(ctx, cmd.ClientID, cmd.Currency)
	if err != nil {
		return CartView{}, err
	}

	item := cmd.Item
	if s.catalog != nil {
		entry, err := s.catalog.Lookup(ctx, strings.TrimSpace(item.ReferenceID), item.Kind)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return CartView{}, fmt.Errorf("%w: %s", ErrCartUnknownItem, item.ReferenceID)
			}
			return CartView{}, err
		}
		if !entry.Active {
			return CartView{}, fmt.Errorf("%w: %s", ErrCartUnknownItem, item.ReferenceID)
		}
		item.Name = entry.Name
		item.UnitPrice = entry.UnitPrice
		item.Currency = entry.Currency
	}

	if _, err := aggregator.AddItem(ctx, item); err != nil {
		return CartView{}, err
	}
	return s.view(aggregator)
}

func (s *cartService) UpdateQuantity(ctx context.Context, clientID, itemID string, quantity int) (CartView, error) {
	aggregator, err := s.session(ctx, clientID, "")
	if err != nil {
		return CartView{}, err
	}
	if _, err := aggregator.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return CartView{}, err
	}
	return s.view(aggregator)
}

func (s *cartService) RemoveItem(ctx context.Context, clientID, itemID string) (CartView, error) {
	aggregator, err := s.session(ctx, clientID, "")
	if err != nil {
		return CartView{}, err
	}
	if _, err := aggregator.RemoveItem(ctx, itemID); err != nil {
		return CartView{}, err
	}
	return s.view(aggregator)
}

func (s *cartService) Clear(ctx context.Context, clientID string) (CartView, error) {
	aggregator, err := s.session(ctx, clientID, "")
	if err != nil {
		return CartView{}, err
	}
	if _, err := aggregator.Clear(ctx); err != nil {
		return CartView{}, err
	}
	return s.view(aggregator)
}

// canonicalClientID is the key carts are stored under: the lower-case hyphenated UUID form.
func canonicalClientID(clientID string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(clientID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCartInvalidClient, err)
	}
	return parsed.String(), nil
}

func (s *cartService) session(ctx context.Context, clientID, currency string) (*cart.Aggregator, error) {
	key, err := canonicalClientID(clientID)
	if err != nil {
		return nil, err
	}
	aggregator, err := cart.NewAggregator(cart.AggregatorDeps{
		Store:    s.store,
		ClientID: key,
		Currency: currency,
		Clock:    s.clock,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := aggregator.Hydrate(ctx); err != nil {
		return nil, err
	}
	return aggregator, nil
}

func (s *cartService) view(aggregator *cart.Aggregator) (CartView, error) {
	snapshot := aggregator.Snapshot()
	subtotal, err := aggregator.Subtotal()
	if err != nil {
		return CartView{}, err
	}
	view := CartView{Cart: snapshot, Subtotal: subtotal}
	if snapshot.Currency != "" {
		view.FormattedSubtotal = pricing.Format(subtotal, snapshot.Currency, s.locale)
	}
	return view, nil
}
