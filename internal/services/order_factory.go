package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/textutil"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status_changed"

	orderIDPrefix = "ord_"

	// DefaultMaxNumberAttempts bounds order number regeneration on storage conflicts.
	DefaultMaxNumberAttempts = 5

	maxCustomerFieldLength = 200
	maxPhoneDigits         = 15
	minPhoneDigits         = 7
)

// DefaultSupportedCurrencies lists the currencies sold when none are configured.
var DefaultSupportedCurrencies = []string{"UAH", "EUR", "USD"}

// OrderFactoryDeps bundles collaborators required to construct the order factory.
type OrderFactoryDeps struct {
	Orders              repositories.OrderRepository
	Catalog             repositories.CatalogRepository
	SupportedCurrencies []string
	NumberGenerator     OrderNumberGenerator
	MaxNumberAttempts   int
	Clock               func() time.Time
	IDGenerator         func() string
	Events              OrderEventPublisher
	Logger              func(ctx context.Context, event string, fields map[string]any)
}

type orderFactory struct {
	orders      repositories.OrderRepository
	catalog     repositories.CatalogRepository
	currencies  []string
	nextNumber  OrderNumberGenerator
	maxAttempts int
	clock       func() time.Time
	newID       func() string
	events      OrderEventPublisher
	logger      func(context.Context, string, map[string]any)
}

var _ OrderFactory = (*orderFactory)(nil)

// NewOrderFactory wires dependencies into a concrete OrderFactory implementation.
func NewOrderFactory(deps OrderFactoryDeps) (OrderFactory, error) {
	if deps.Orders == nil {
		return nil, errors.New("order factory: order repository is required")
	}

	currencies := make([]string, 0, len(deps.SupportedCurrencies))
	for _, code := range deps.SupportedCurrencies {
		normalized := pricing.NormalizeCurrency(code)
		if normalized == "" {
			continue
		}
		if _, err := pricing.MinorUnitScale(normalized); err != nil {
			return nil, fmt.Errorf("order factory: %w", err)
		}
		currencies = append(currencies, normalized)
	}
	if len(currencies) == 0 {
		currencies = slices.Clone(DefaultSupportedCurrencies)
	}

	generator := deps.NumberGenerator
	if generator == nil {
		var err error
		generator, err = NewOrderNumberGenerator(DefaultOrderNumberPrefix, nil)
		if err != nil {
			return nil, err
		}
	}

	attempts := deps.MaxNumberAttempts
	if attempts <= 0 {
		attempts = DefaultMaxNumberAttempts
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderFactory{
		orders:      deps.Orders,
		catalog:     deps.Catalog,
		currencies:  currencies,
		nextNumber:  generator,
		maxAttempts: attempts,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// Create validates and reprices the cart, then persists a pending order under a fresh order
// number. Nothing is written unless every check passes.
func (f *orderFactory) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if len(cmd.Cart.Items) == 0 {
		return Order{}, ErrEmptyCart
	}

	currency := pricing.NormalizeCurrency(cmd.Cart.Currency)
	if currency == "" {
		currency = pricing.NormalizeCurrency(cmd.Cart.Items[0].Currency)
	}
	if !slices.Contains(f.currencies, currency) {
		return Order{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}

	customer, verr := normalizeCustomer(cmd.Customer)
	provider := strings.ToLower(strings.TrimSpace(cmd.PaymentProvider))
	if provider == "" {
		verr.add("paymentProvider", "is required")
	}
	if err := verr.orNil(); err != nil {
		return Order{}, err
	}

	items, err := f.priceItems(ctx, cmd.Cart.Items, currency)
	if err != nil {
		return Order{}, err
	}
	subtotal, err := pricing.Subtotal(items)
	if err != nil {
		return Order{}, err
	}

	now := f.clock()
	order := Order{
		ID:              orderIDPrefix + f.newID(),
		Items:           items,
		Subtotal:        subtotal,
		Total:           subtotal,
		Currency:        currency,
		Customer:        customer,
		Locale:          strings.TrimSpace(cmd.Locale),
		Status:          domain.OrderStatusPending,
		PaymentProvider: provider,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		number, err := f.nextNumber(now)
		if err != nil {
			return Order{}, err
		}
		order.OrderNumber = number

		err = f.orders.Insert(ctx, order)
		if err == nil {
			f.logger(ctx, "order.created", map[string]any{
				"orderNumber": number,
				"total":       order.Total,
				"currency":    order.Currency,
				"provider":    provider,
				"attempt":     attempt,
			})
			f.publish(ctx, order)
			return order, nil
		}

		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			f.logger(ctx, "order.number.collision", map[string]any{
				"orderNumber": number,
				"attempt":     attempt,
			})
			continue
		}
		return Order{}, mapOrderRepositoryError(err)
	}

	return Order{}, fmt.Errorf("%w after %d attempts", ErrOrderNumberExhausted, f.maxAttempts)
}

// priceItems re-validates every line, merges duplicates with the cart policy and replaces
// client supplied prices with catalog prices.
func (f *orderFactory) priceItems(ctx context.Context, lines []LineItem, currency string) ([]LineItem, error) {
	var merged []LineItem
	verr := &ValidationError{}
	for i, line := range lines {
		field := fmt.Sprintf("items[%d]", i)
		normalized, err := cart.NormalizeItem(line)
		if err != nil {
			verr.add(field, err.Error())
			continue
		}
		if normalized.Currency != "" && normalized.Currency != currency {
			return nil, fmt.Errorf("%w: %s is %s, cart is %s", pricing.ErrCurrencyMismatch, field, normalized.Currency, currency)
		}
		normalized.Currency = currency

		if f.catalog != nil {
			entry, err := f.catalog.Lookup(ctx, normalized.ReferenceID, normalized.Kind)
			if err != nil {
				var repoErr repositories.RepositoryError
				if errors.As(err, &repoErr) && repoErr.IsNotFound() {
					verr.add(field, "unknown catalog reference "+normalized.ReferenceID)
					continue
				}
				return nil, fmt.Errorf("order factory: catalog lookup: %w", err)
			}
			if !entry.Active {
				verr.add(field, normalized.ReferenceID+" is no longer available")
				continue
			}
			if pricing.NormalizeCurrency(entry.Currency) != currency {
				return nil, fmt.Errorf("%w: %s is priced in %s, cart is %s", pricing.ErrCurrencyMismatch, normalized.ReferenceID, entry.Currency, currency)
			}
			normalized.UnitPrice = entry.UnitPrice
			if name := strings.TrimSpace(entry.Name); name != "" {
				normalized.Name = name
			}
		}
		normalized.Name = textutil.StripTags(normalized.Name)

		next, err := cart.Merge(merged, normalized)
		if err != nil {
			if errors.Is(err, cart.ErrDuplicateBooking) {
				return nil, err
			}
			verr.add(field, err.Error())
			continue
		}
		merged = next
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return merged, nil
}

func (f *orderFactory) publish(ctx context.Context, order Order) {
	if f.events == nil {
		return
	}
	event := OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		OccurredAt:    order.CreatedAt,
		Metadata: map[string]any{
			"total":    order.Total,
			"currency": order.Currency,
			"provider": order.PaymentProvider,
		},
	}
	if err := f.events.PublishOrderEvent(ctx, event); err != nil {
		f.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": order.OrderNumber,
			"error": err.Error(),
		})
	}
}

func normalizeCustomer(input Customer) (Customer, *ValidationError) {
	verr := &ValidationError{}
	customer := Customer{
		FirstName: textutil.StripTags(input.FirstName),
		LastName:  textutil.StripTags(input.LastName),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:     strings.TrimSpace(input.Phone),
	}

	requireText := func(field, value string) {
		switch {
		case value == "":
			verr.add(field, "is required")
		case len(value) > maxCustomerFieldLength:
			verr.add(field, "is too long")
		}
	}
	requireText("customer.firstName", customer.FirstName)
	requireText("customer.lastName", customer.LastName)

	if customer.Email == "" {
		verr.add("customer.email", "is required")
	} else if addr, err := mail.ParseAddress(customer.Email); err != nil || addr.Address != customer.Email {
		verr.add("customer.email", "is not a valid email address")
	}

	if customer.Phone != "" && !validPhone(customer.Phone) {
		verr.add("customer.phone", "is not a valid phone number")
	}

	if input.Address != nil {
		addr := Address{
			Line1:      textutil.StripTags(input.Address.Line1),
			Line2:      textutil.StripTags(input.Address.Line2),
			City:       textutil.StripTags(input.Address.City),
			Region:     textutil.StripTags(input.Address.Region),
			PostalCode: textutil.StripTags(input.Address.PostalCode),
			Country:    strings.ToUpper(textutil.StripTags(input.Address.Country)),
		}
		if addr != (Address{}) {
			requireText("customer.address.line1", addr.Line1)
			requireText("customer.address.city", addr.City)
			if len(addr.Country) != 2 {
				verr.add("customer.address.country", "must be an ISO 3166-1 alpha-2 code")
			}
			customer.Address = &addr
		}
	}

	return customer, verr
}

func validPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}
