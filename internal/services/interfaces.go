package services

import (
	"context"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order               = domain.Order
	OrderStatus         = domain.OrderStatus
	LineItem            = domain.LineItem
	Cart                = domain.Cart
	Customer            = domain.Customer
	Address             = domain.Address
	StatusChange        = domain.StatusChange
	PaymentNotification = domain.PaymentNotification
	NotificationRecord  = domain.NotificationRecord
	SystemHealthReport  = domain.SystemHealthReport
)

// OrderFactory converts a finalized cart into a persisted pending order.
type OrderFactory interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
}

// PaymentReconciler applies provider notifications to orders idempotently.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, notification PaymentNotification) (ReconcileResult, error)
}

// CheckoutService creates an order and the provider redirect for it.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// OrderService exposes customer lookups and staff operations on existing orders.
type OrderService interface {
	LookupForCustomer(ctx context.Context, orderNumber, email string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrderDetail(ctx context.Context, orderNumber string) (OrderDetail, error)
	OverrideStatus(ctx context.Context, cmd OverrideStatusCommand) (Order, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Order, error)
}

// CartService runs cart sessions keyed by client identifier.
type CartService interface {
	NewClientID() string
	Get(ctx context.Context, clientID string) (CartView, error)
	AddItem(ctx context.Context, cmd CartItemCommand) (CartView, error)
	UpdateQuantity(ctx context.Context, clientID, itemID string, quantity int) (CartView, error)
	RemoveItem(ctx context.Context, clientID, itemID string) (CartView, error)
	Clear(ctx context.Context, clientID string) (CartView, error)
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// PaymentGateway is the subset of payments.Manager used by checkout and webhooks.
type PaymentGateway interface {
	Has(provider string) bool
	Resolve(ctx payments.PaymentContext) (string, error)
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	ParseNotification(ctx context.Context, provider string, req payments.NotificationRequest) (PaymentNotification, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// CreateOrderCommand carries the checkout submission handed to the OrderFactory.
type CreateOrderCommand struct {
	Cart            Cart
	Customer        Customer
	PaymentProvider string
	Locale          string
}

// CheckoutCommand is the storefront checkout request.
type CheckoutCommand struct {
	Cart            Cart
	Customer        Customer
	PaymentProvider string
	Locale          string
	ClientID        string
	IdempotencyKey  string
}

// CheckoutResult is returned to the storefront after a successful checkout.
type CheckoutResult struct {
	Order    Order
	Redirect payments.CheckoutSession
}

// ReconcileResult reports how a notification was handled. Err carries business outcomes such as
// ErrAmountMismatch and processing failures such as exhausted conflict retries. Once the record is
// stored these never surface as the call error.
type ReconcileResult struct {
	Record  NotificationRecord
	Order   *Order
	Applied bool
	Err     error
}

// OrderListFilter narrows admin listings.
type OrderListFilter = repositories.OrderListFilter

// OrderDetail is the staff view of an order and every notification received for it.
type OrderDetail struct {
	Order         Order
	Notifications []NotificationRecord
}

// OverrideStatusCommand is a staff-initiated status change.
type OverrideStatusCommand struct {
	OrderNumber      string
	TargetStatus     OrderStatus
	ExpectedVersion  *int64
	PaymentReference string
	ActorID          string
	Reason           string
}

// CartItemCommand adds one line item to a client's cart.
type CartItemCommand struct {
	ClientID string
	Currency string
	Item     LineItem
}

// CartView is the cart snapshot returned to clients with derived totals.
type CartView struct {
	Cart              Cart
	Subtotal          int64
	FormattedSubtotal string
}
