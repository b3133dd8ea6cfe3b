package payments

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

var errNilManager = errors.New("payments: manager is nil")

// PaymentContext carries the hints used to pick a provider for a checkout.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

// Manager routes checkouts and notifications to registered providers by key.
type Manager struct {
	providers map[string]Provider
	fallback  string
	byCurr    map[string]string
}

type ManagerOption func(*Manager)

func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) { m.fallback = providerKey(provider) }
}

// WithCurrencyRoutes maps ISO currency codes to provider keys, e.g. UAH to liqpay.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		for currency, provider := range routes {
			m.byCurr[strings.ToUpper(strings.TrimSpace(currency))] = providerKey(provider)
		}
	}
}

func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: no providers configured")
	}
	m := &Manager{
		providers: make(map[string]Provider, len(providers)),
		byCurr:    make(map[string]string),
	}
	for name, p := range providers {
		key := providerKey(name)
		if key == "" || p == nil {
			return nil, fmt.Errorf("payments: bad provider registration %q", name)
		}
		m.providers[key] = p
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Resolve picks the provider key for a checkout. An explicit preference must name a registered
// provider. Otherwise the currency route wins, then the default provider, then the only
// provider when exactly one is registered.
func (m *Manager) Resolve(hints PaymentContext) (string, error) {
	key, _, err := m.pick(hints)
	return key, err
}

func (m *Manager) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.providers[providerKey(key)]
	return ok
}

// Providers returns the registered keys, sorted.
func (m *Manager) Providers() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.providers))
}

func (m *Manager) pick(hints PaymentContext) (string, Provider, error) {
	if m == nil {
		return "", nil, errNilManager
	}
	if preferred := providerKey(hints.PreferredProvider); preferred != "" {
		p, ok := m.providers[preferred]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, preferred)
		}
		return preferred, p, nil
	}

	candidates := []string{m.byCurr[strings.ToUpper(strings.TrimSpace(hints.Currency))], m.fallback}
	if len(m.providers) == 1 {
		candidates = append(candidates, m.Providers()[0])
	}
	for _, key := range candidates {
		if p, ok := m.providers[key]; ok && key != "" {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateCheckoutSession stamps the chosen provider key on the session and defaults its method
// to GET.
func (m *Manager) CreateCheckoutSession(ctx context.Context, hints PaymentContext, req CheckoutSessionRequest) (CheckoutSession, error) {
	key, p, err := m.pick(hints)
	if err != nil {
		return CheckoutSession{}, err
	}
	session, err := p.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.Provider = key
	if session.Method == "" {
		session.Method = http.MethodGet
	}
	return session, nil
}

// ParseNotification hands the callback to the named provider. The result always carries the
// provider key, the receive time and the raw body when the provider left them empty.
func (m *Manager) ParseNotification(ctx context.Context, provider string, req NotificationRequest) (domain.PaymentNotification, error) {
	if m == nil {
		return domain.PaymentNotification{}, errNilManager
	}
	key := providerKey(provider)
	p, ok := m.providers[key]
	if !ok {
		return domain.PaymentNotification{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, key)
	}
	n, err := p.ParseNotification(ctx, req)
	if err != nil {
		return domain.PaymentNotification{}, err
	}
	n.Provider = key
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = req.ReceivedAt
	}
	if n.Payload == nil {
		n.Payload = req.Body
	}
	return n, nil
}

func providerKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
