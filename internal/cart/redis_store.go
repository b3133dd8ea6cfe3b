package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

const defaultRedisTTL = 30 * 24 * time.Hour

// saveIfNewer keeps the hash with the highest version. KEYS[1] cart key; ARGV version, payload, ttl ms.
var saveIfNewer = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if current > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisStore persists carts as hashes of {version, data} so the version check runs server side.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// RedisOption customises a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL overrides how long an idle cart is retained.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithKeyPrefix overrides the key prefix (default "cart").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

// NewRedisStore constructs a Store on top of the given redis client.
func NewRedisStore(client redis.Cmdable, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("cart: redis client is required")
	}
	store := &RedisStore{client: client, ttl: defaultRedisTTL, prefix: "cart"}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

type cartDocument struct {
	ClientID  string         `json:"clientId"`
	Currency  string         `json:"currency"`
	Items     []itemDocument `json:"items"`
	Version   int64          `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type itemDocument struct {
	ReferenceID string `json:"referenceId"`
	Kind        string `json:"kind"`
	Name        string `json:"name,omitempty"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Currency    string `json:"currency,omitempty"`
	BookingDate string `json:"bookingDate,omitempty"`
	BookingTime string `json:"bookingTime,omitempty"`
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, clientID string) (domain.Cart, error) {
	raw, err := s.client.HGet(ctx, s.key(clientID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, ErrNotFound
		}
		return domain.Cart{}, fmt.Errorf("cart: redis load: %w", err)
	}

	var doc cartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Cart{}, fmt.Errorf("cart: decode snapshot: %w", err)
	}
	return decodeCart(doc), nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, cart domain.Cart) (bool, error) {
	payload, err := json.Marshal(encodeCart(cart))
	if err != nil {
		return false, fmt.Errorf("cart: encode snapshot: %w", err)
	}
	applied, err := saveIfNewer.Run(ctx, s.client, []string{s.key(cart.ClientID)}, cart.Version, payload, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cart: redis save: %w", err)
	}
	return applied == 1, nil
}

func (s *RedisStore) key(clientID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, strings.TrimSpace(clientID))
}

func encodeCart(cart domain.Cart) cartDocument {
	doc := cartDocument{
		ClientID:  cart.ClientID,
		Currency:  cart.Currency,
		Items:     make([]itemDocument, 0, len(cart.Items)),
		Version:   cart.Version,
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, itemDocument{
			ReferenceID: item.ReferenceID,
			Kind:        string(item.Kind),
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Currency:    item.Currency,
			BookingDate: item.BookingDate,
			BookingTime: item.BookingTime,
		})
	}
	return doc
}

func decodeCart(doc cartDocument) domain.Cart {
	cart := domain.Cart{
		ClientID:  doc.ClientID,
		Currency:  doc.Currency,
		Items:     make([]domain.LineItem, 0, len(doc.Items)),
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.LineItem{
			ReferenceID: item.ReferenceID,
			Kind:        domain.ItemKind(item.Kind),
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Currency:    item.Currency,
			BookingDate: item.BookingDate,
			BookingTime: item.BookingTime,
		})
	}
	return cart
}
