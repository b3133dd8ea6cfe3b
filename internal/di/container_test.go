package di

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories/memory"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{PublicBaseURL: "https://api.shop.test"},
		Checkout: config.CheckoutConfig{
			OrderNumberPrefix:   "PFS",
			SupportedCurrencies: []string{"UAH"},
			SuccessURL:          "https://shop.test/checkout/success?order={orderNumber}",
			CancelURL:           "https://shop.test/checkout/cancel",
			ReconcileRetries:    3,
		},
	}
}

func newTestContainer(t *testing.T, publisher services.OrderEventPublisher) *Container {
	t.Helper()

	manual, err := payments.NewManualProvider(payments.ManualProviderConfig{InstructionsURL: "https://shop.test/pay/manual"})
	if err != nil {
		t.Fatalf("manual provider: %v", err)
	}
	manager, err := payments.NewManager(map[string]payments.Provider{"manual": manual}, payments.WithDefaultProvider("manual"))
	if err != nil {
		t.Fatalf("payment manager: %v", err)
	}

	registry := memory.NewRegistry(
		domain.CatalogEntry{ReferenceID: "silk-scarf", Kind: domain.ItemKindProduct, Name: "Silk scarf", UnitPrice: 175000, Currency: "UAH", Active: true},
		domain.CatalogEntry{ReferenceID: "styling-session", Kind: domain.ItemKindService, Name: "Personal styling", UnitPrice: 250000, Currency: "UAH", Active: true},
	)
	container, err := NewContainer(context.Background(), testConfig(), registry, Infrastructure{
		CartStore: cart.NewMemoryStore(),
		Payments:  manager,
		Events:    publisher,
		Clock:     func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })
	return container
}

func TestNewContainerRequiresInfrastructure(t *testing.T) {
	registry := memory.NewRegistry()
	if _, err := NewContainer(context.Background(), testConfig(), nil, Infrastructure{}); err == nil {
		t.Fatal("expected error without registry")
	}
	if _, err := NewContainer(context.Background(), testConfig(), registry, Infrastructure{}); err == nil {
		t.Fatal("expected error without cart store")
	}
	if _, err := NewContainer(context.Background(), testConfig(), registry, Infrastructure{CartStore: cart.NewMemoryStore()}); err == nil {
		t.Fatal("expected error without payment gateway")
	}
}

func TestContainerCheckoutThroughReconcile(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	container := newTestContainer(t, publisher)
	svc := container.Services

	if svc.System == nil {
		t.Fatal("expected system service for registry with health repository")
	}

	clientID := svc.Cart.NewClientID()
	if _, err := svc.Cart.AddItem(ctx, services.CartItemCommand{
		ClientID: clientID,
		Currency: "UAH",
		Item:     domain.LineItem{ReferenceID: "silk-scarf", Kind: domain.ItemKindProduct, Name: "Silk scarf", UnitPrice: 175000, Quantity: 2, Currency: "UAH"},
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	view, err := svc.Cart.Get(ctx, clientID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if view.Subtotal != 350000 {
		t.Fatalf("expected cart subtotal 350000, got %d", view.Subtotal)
	}

	result, err := svc.Checkout.Checkout(ctx, services.CheckoutCommand{
		Cart:     view.Cart,
		Customer: domain.Customer{FirstName: "Iryna", LastName: "Bondar", Email: "iryna@example.com"},
		ClientID: clientID,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	order := result.Order
	if order.Status != domain.OrderStatusPending || order.Total != 350000 || order.PaymentProvider != "manual" {
		t.Fatalf("unexpected order %#v", order)
	}
	if result.Redirect.RedirectURL != "https://shop.test/pay/manual?order="+order.OrderNumber {
		t.Fatalf("unexpected redirect %q", result.Redirect.RedirectURL)
	}

	notification, err := svc.Payments.ParseNotification(ctx, "manual", payments.NotificationRequest{
		Body:       []byte(`{"orderNumber":"` + order.OrderNumber + `","reference":"bank-transfer-42","status":"paid","amount":350000,"currency":"uah","eventId":"evt-1"}`),
		ReceivedAt: time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ParseNotification: %v", err)
	}

	outcome, err := svc.Reconciler.Reconcile(ctx, notification)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !outcome.Applied || outcome.Order == nil || outcome.Order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected order paid, got %#v", outcome)
	}

	replay, err := svc.Reconciler.Reconcile(ctx, notification)
	if err != nil {
		t.Fatalf("replay Reconcile: %v", err)
	}
	if replay.Applied {
		t.Fatalf("expected duplicate notification to be a no-op, got %#v", replay)
	}

	detail, err := svc.Orders.GetOrderDetail(ctx, order.OrderNumber)
	if err != nil {
		t.Fatalf("GetOrderDetail: %v", err)
	}
	if detail.Order.PaymentReference != "bank-transfer-42" || len(detail.Notifications) == 0 {
		t.Fatalf("unexpected detail %#v", detail)
	}

	found, err := svc.Orders.LookupForCustomer(ctx, order.OrderNumber, "IRYNA@example.com")
	if err != nil {
		t.Fatalf("LookupForCustomer: %v", err)
	}
	if found.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order from lookup, got %s", found.Status)
	}

	if len(publisher.types()) < 2 {
		t.Fatalf("expected created and status events, got %v", publisher.types())
	}
}
