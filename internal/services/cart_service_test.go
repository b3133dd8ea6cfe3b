package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories/memory"
)

func newTestCartService(t *testing.T) (CartService, *cart.MemoryStore) {
	t.Helper()
	registry := memory.NewRegistry(testCatalog()...)
	store := cart.NewMemoryStore()
	svc, err := NewCartService(CartServiceDeps{Store: store, Catalog: registry.Catalog(), DefaultLocale: "en"})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc, store
}

func TestCartServiceAddPricesFromCatalog(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	clientID := svc.NewClientID()
	if _, err := uuid.Parse(clientID); err != nil {
		t.Fatalf("expected uuid client id, got %q", clientID)
	}

	view, err := svc.AddItem(ctx, CartItemCommand{ClientID: clientID, Item: LineItem{ReferenceID: "product-a", Kind: domain.ItemKindProduct, UnitPrice: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	view, err = svc.AddItem(ctx, CartItemCommand{ClientID: clientID, Item: LineItem{ReferenceID: "service-b", Kind: domain.ItemKindService, BookingDate: "2024-06-01", BookingTime: "10:00"}})
	if err != nil {
		t.Fatalf("AddItem service: %v", err)
	}
	if view.Subtotal != 7000 || view.Cart.Currency != "UAH" {
		t.Fatalf("unexpected view %#v", view)
	}
	if view.FormattedSubtotal == "" {
		t.Fatalf("expected formatted subtotal")
	}

	stored, err := store.Load(ctx, clientID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored.Items) != 2 || stored.Version != view.Cart.Version {
		t.Fatalf("expected write-through, got %#v", stored)
	}
}

func TestCartServiceSessionOperations(t *testing.T) {
	svc, _ := newTestCartService(t)
	ctx := context.Background()
	clientID := uuid.NewString()

	view, err := svc.AddItem(ctx, CartItemCommand{ClientID: clientID, Item: LineItem{ReferenceID: "product-a", Kind: domain.ItemKindProduct}})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	itemID := view.Cart.Items[0].ID()

	view, err = svc.UpdateQuantity(ctx, clientID, itemID, 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if view.Cart.Items[0].Quantity != 1 {
		t.Fatalf("expected clamp to 1, got %d", view.Cart.Items[0].Quantity)
	}

	view, err = svc.RemoveItem(ctx, clientID, itemID)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(view.Cart.Items) != 0 || view.Subtotal != 0 {
		t.Fatalf("expected empty cart, got %#v", view)
	}

	if _, err := svc.RemoveItem(ctx, clientID, itemID); err != nil {
		t.Fatalf("RemoveItem again should be idempotent: %v", err)
	}

	cleared, err := svc.Clear(ctx, clientID)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(cleared.Cart.Items) != 0 {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestCartServiceRejectsUnknownItemsAndClients(t *testing.T) {
	svc, _ := newTestCartService(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrCartInvalidClient) {
		t.Fatalf("expected ErrCartInvalidClient, got %v", err)
	}
	if _, err := svc.AddItem(ctx, CartItemCommand{ClientID: uuid.NewString(), Item: LineItem{ReferenceID: "retired", Kind: domain.ItemKindProduct}}); !errors.Is(err, ErrCartUnknownItem) {
		t.Fatalf("expected ErrCartUnknownItem, got %v", err)
	}
	clientID := uuid.NewString()
	if _, err := svc.AddItem(ctx, CartItemCommand{ClientID: clientID, Item: LineItem{ReferenceID: "product-a", Kind: domain.ItemKindProduct}}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, CartItemCommand{ClientID: clientID, Item: LineItem{ReferenceID: "euro-course", Kind: domain.ItemKindService}}); err == nil {
		t.Fatalf("expected currency mismatch")
	}
}
