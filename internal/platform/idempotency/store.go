// Package idempotency replays checkout responses for retried requests carrying the same
// Idempotency-Key, so a shopper double-submitting checkout gets one order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL applies when a store call gets a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch means the key was already used for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request")

// State is the outcome of Reserve.
type State int

const (
	// StateNew: the caller owns the key and must run the request.
	StateNew State = iota
	// StateInFlight: another request holds the key and has not finished.
	StateInFlight
	// StateReplay: the stored response must be sent back as-is.
	StateReplay
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInFlight:
		return "in_flight"
	case StateReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// Response is a captured HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Record is what a store keeps per key.
type Record struct {
	Key         string
	Fingerprint string
	Completed   bool
	Response    Response
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Reservation is returned by Reserve. Record is the stored entry for StateReplay and
// StateInFlight, and the new entry for StateNew.
type Reservation struct {
	State  State
	Record Record
}

// Store persists reservations. Implementations must make Reserve atomic per key.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// decide applies the reservation rules to whatever the store currently holds for the key.
// A nil or expired existing record lets the caller claim the key with fresh.
func decide(existing *Record, fresh Record, now time.Time) (Reservation, error) {
	if existing == nil || existing.expired(now) {
		return Reservation{State: StateNew, Record: fresh}, nil
	}
	if existing.Fingerprint != fresh.Fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if existing.Completed {
		return Reservation{State: StateReplay, Record: *existing}, nil
	}
	return Reservation{State: StateInFlight, Record: *existing}, nil
}

func pendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	now = now.UTC()
	return Record{Key: key, Fingerprint: fingerprint, CreatedAt: now, ExpiresAt: now.Add(normalizeTTL(ttl))}
}

// completed returns r carrying resp, with a fresh expiry.
func (r Record) completed(resp Response, now time.Time, ttl time.Duration) Record {
	r.Completed = true
	r.Response = Response{
		Status: resp.Status,
		Header: replayableHeader(resp.Header),
		Body:   append([]byte(nil), resp.Body...),
	}
	r.ExpiresAt = now.UTC().Add(normalizeTTL(ttl))
	return r
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// storageID hashes the caller's key so arbitrary client input is safe as a document id.
func storageID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var hopByHop = map[string]bool{
	"Connection":          true,
	"Content-Length":      true,
	"Date":                true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// replayableHeader drops headers that describe the original connection rather than the response.
func replayableHeader(src http.Header) http.Header {
	out := make(http.Header, len(src))
	for name, values := range src {
		name = http.CanonicalHeaderKey(name)
		if hopByHop[name] {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}
