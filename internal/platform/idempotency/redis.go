package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "idem:"
	maxWatchRetries    = 3
)

// RedisClient is the part of *redis.Client the store needs.
type RedisClient interface {
	redis.Cmdable
	Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error
}

// RedisStore keeps reservations as JSON values that expire with the record. Reserve uses
// WATCH/MULTI so two replicas cannot both claim a key.
type RedisStore struct {
	client RedisClient
	prefix string
}

// NewRedisStore wraps client. An empty prefix means "idem:".
func NewRedisStore(client RedisClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

type redisEntry struct {
	Key         string      `json:"key"`
	Fingerprint string      `json:"fp"`
	Completed   bool        `json:"done,omitempty"`
	Status      int         `json:"status,omitempty"`
	Header      http.Header `json:"header,omitempty"`
	Body        []byte      `json:"body,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func toRedisEntry(r Record) redisEntry {
	return redisEntry{
		Key:         r.Key,
		Fingerprint: r.Fingerprint,
		Completed:   r.Completed,
		Status:      r.Response.Status,
		Header:      r.Response.Header,
		Body:        r.Response.Body,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

func (e redisEntry) record() Record {
	return Record{
		Key:         e.Key,
		Fingerprint: e.Fingerprint,
		Completed:   e.Completed,
		Response:    Response{Status: e.Status, Header: e.Header, Body: e.Body},
		CreatedAt:   e.CreatedAt,
		ExpiresAt:   e.ExpiresAt,
	}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	id := s.prefix + storageID(key)
	fresh := pendingRecord(key, fingerprint, now, ttl)

	var res Reservation
	txn := func(tx *redis.Tx) error {
		existing, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err = decide(existing, fresh, now)
		if err != nil || res.State != StateNew {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.put(ctx, pipe, id, fresh, normalizeTTL(ttl))
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txn, id)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrFingerprintMismatch) {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		return res, err
	}
	return Reservation{}, fmt.Errorf("idempotency: reserve: key %s contended", id)
}

func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	id := s.prefix + storageID(key)
	existing, err := s.get(ctx, s.client, id)
	if err != nil {
		return err
	}
	record := pendingRecord(key, fingerprint, now, ttl)
	if existing != nil {
		if existing.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		record = *existing
	}
	return s.put(ctx, s.client, id, record.completed(resp, now, ttl), normalizeTTL(ttl))
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+storageID(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// CleanupExpired does nothing; entries carry a Redis TTL.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisSetter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

func (s *RedisStore) get(ctx context.Context, c redisGetter, id string) (*Record, error) {
	raw, err := c.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency: load: %w", err)
	}
	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("idempotency: decode: %w", err)
	}
	record := entry.record()
	return &record, nil
}

func (s *RedisStore) put(ctx context.Context, c redisSetter, id string, record Record, ttl time.Duration) error {
	payload, err := json.Marshal(toRedisEntry(record))
	if err != nil {
		return fmt.Errorf("idempotency: encode: %w", err)
	}
	if err := c.Set(ctx, id, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: store: %w", err)
	}
	return nil
}
