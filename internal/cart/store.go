package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

// ErrNotFound is returned by stores when no snapshot exists for the client.
var ErrNotFound = errors.New("cart: snapshot not found")

// Store persists cart snapshots keyed by the client identifier. Implementations keep the
// snapshot with the highest Version: Save with a Version lower than the stored one is a
// no-op that reports applied=false.
type Store interface {
	Load(ctx context.Context, clientID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (applied bool, err error)
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]domain.Cart)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, clientID string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[strings.TrimSpace(clientID)]
	if !ok {
		return domain.Cart{}, ErrNotFound
	}
	return cart.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, cart domain.Cart) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(cart.ClientID)
	if current, ok := s.carts[key]; ok && current.Version > cart.Version {
		return false, nil
	}
	s.carts[key] = cart.Clone()
	return true, nil
}
