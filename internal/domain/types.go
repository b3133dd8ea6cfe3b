package domain

import (
	"strings"
	"time"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// CursorPage represents a paginated result set with an optional next page token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ItemKind distinguishes bookable services from quantity-bearing products.
type ItemKind string

const (
	// ItemKindService is a styling service, course session or consultation booked for a slot.
	ItemKindService ItemKind = "service"
	// ItemKindProduct is a bespoke product or collection piece sold by quantity.
	ItemKindProduct ItemKind = "product"
)

// Valid reports whether the kind is one of the supported values.
func (k ItemKind) Valid() bool {
	return k == ItemKindService || k == ItemKindProduct
}

// LineItem represents one sellable unit inside a cart or order. Prices are minor units.
type LineItem struct {
	ReferenceID string
	Kind        ItemKind
	Name        string
	UnitPrice   int64
	Quantity    int
	Currency    string
	BookingDate string
	BookingTime string
}

// IdentityKey is the tuple distinguishing mergeable from distinct line items.
type IdentityKey struct {
	ReferenceID string
	Kind        ItemKind
	BookingDate string
	BookingTime string
}

// String renders the key as the stable item identifier used by cart operations.
func (k IdentityKey) String() string {
	parts := []string{string(k.Kind), k.ReferenceID}
	if k.BookingDate != "" || k.BookingTime != "" {
		parts = append(parts, k.BookingDate, k.BookingTime)
	}
	return strings.Join(parts, ":")
}

// Key returns the identity key of the line item.
func (i LineItem) Key() IdentityKey {
	return IdentityKey{
		ReferenceID: strings.TrimSpace(i.ReferenceID),
		Kind:        i.Kind,
		BookingDate: strings.TrimSpace(i.BookingDate),
		BookingTime: strings.TrimSpace(i.BookingTime),
	}
}

// ID returns the string form of the identity key.
func (i LineItem) ID() string {
	return i.Key().String()
}

// Cart is the client-owned selection of line items. Version is stamped on every write.
type Cart struct {
	ClientID  string
	Currency  string
	Items     []LineItem
	Version   int64
	UpdatedAt time.Time
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	dup := c
	if c.Items != nil {
		dup.Items = append([]LineItem(nil), c.Items...)
	}
	return dup
}

// Address captures a postal address supplied at checkout.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Customer holds the contact fields captured with an order.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   *Address
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending is the initial state set at creation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the provider accepted the payment for processing.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPaid indicates payment succeeded.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFailed indicates the payment failed. Failed orders are never resurrected.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusCancelled indicates the order was cancelled before payment.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusCompleted indicates the order was fulfilled.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusRefunded indicates the payment was returned to the customer.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Order is the durable record created once from a cart snapshot. Items, totals and currency
// never change after creation.
type Order struct {
	ID               string
	OrderNumber      string
	Items            []LineItem
	Subtotal         int64
	Total            int64
	Currency         string
	Customer         Customer
	Locale           string
	Status           OrderStatus
	PaymentProvider  string
	PaymentReference string
	PaymentStatusRaw string
	PaidAt           *time.Time
	NeedsReview      bool
	ReviewReason     string
	History          []StatusChange
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	dup := o
	dup.Items = append([]LineItem(nil), o.Items...)
	dup.History = append([]StatusChange(nil), o.History...)
	if o.Customer.Address != nil {
		addr := *o.Customer.Address
		dup.Customer.Address = &addr
	}
	if o.PaidAt != nil {
		paidAt := *o.PaidAt
		dup.PaidAt = &paidAt
	}
	return dup
}

// StatusChange records one applied status transition.
type StatusChange struct {
	From   OrderStatus
	To     OrderStatus
	Actor  string
	Reason string
	At     time.Time
}

// PaymentNotification is the provider-independent shape of a payment callback.
type PaymentNotification struct {
	Provider         string
	Reference        string
	CorrelationToken string
	RawStatus        string
	Amount           *int64
	Currency         string
	EventID          string
	ReceivedAt       time.Time
	Payload          []byte
}

// NotificationOutcome classifies how a payment notification was handled.
type NotificationOutcome string

const (
	NotificationApplied         NotificationOutcome = "applied"
	NotificationDuplicate       NotificationOutcome = "duplicate"
	NotificationRejectedClosed  NotificationOutcome = "rejected_closed"
	NotificationRejectedIllegal NotificationOutcome = "rejected_illegal"
	NotificationAmountMismatch  NotificationOutcome = "amount_mismatch"
	NotificationUnknownStatus   NotificationOutcome = "unknown_status"
	NotificationOrderNotFound   NotificationOutcome = "order_not_found"
	NotificationReceived        NotificationOutcome = "received"
)

// NotificationRecord is the audit entry kept for every received payment notification.
type NotificationRecord struct {
	ID           string
	OrderNumber  string
	Provider     string
	Reference    string
	RawStatus    string
	Amount       *int64
	Currency     string
	EventID      string
	DedupeKey    string
	Outcome      NotificationOutcome
	TargetStatus OrderStatus
	Detail       string
	ReceivedAt   time.Time
	ProcessedAt  time.Time
}

// CatalogEntry is the authoritative price of a sellable reference at checkout time.
type CatalogEntry struct {
	ReferenceID string
	Kind        ItemKind
	Name        string
	UnitPrice   int64
	Currency    string
	Active      bool
}
