package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultOrderNumberPrefix is used when no prefix is configured.
	DefaultOrderNumberPrefix = "PFS"

	crockfordAlphabet   = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	orderNumberTimeLen  = 6
	orderNumberRandLen  = 6
	ulidEncodedLength   = 26
	maxOrderPrefixChars = 8
)

var orderNumberEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// OrderNumberGenerator produces candidate order numbers. Uniqueness is enforced by storage.
type OrderNumberGenerator func(now time.Time) (string, error)

// NewOrderNumberGenerator returns a generator producing <prefix>-<time><random>, where time is
// the minutes since 2024-01-01 UTC and random is drawn from entropy. A nil entropy uses crypto/rand.
func NewOrderNumberGenerator(prefix string, entropy io.Reader) (OrderNumberGenerator, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultOrderNumberPrefix
	}
	if len(prefix) > maxOrderPrefixChars || strings.ContainsFunc(prefix, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9')
	}) {
		return nil, fmt.Errorf("order number: invalid prefix %q", prefix)
	}
	if entropy == nil {
		entropy = rand.Reader
	}

	return func(now time.Time) (string, error) {
		id, err := ulid.New(ulid.Timestamp(now), entropy)
		if err != nil {
			return "", fmt.Errorf("order number: entropy: %w", err)
		}
		random := id.String()[ulidEncodedLength-orderNumberRandLen:]
		return prefix + "-" + encodeOrderMinutes(now) + random, nil
	}, nil
}

func encodeOrderMinutes(now time.Time) string {
	minutes := int64(now.UTC().Sub(orderNumberEpoch) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	var buf [orderNumberTimeLen]byte
	for i := orderNumberTimeLen - 1; i >= 0; i-- {
		buf[i] = crockfordAlphabet[minutes%32]
		minutes /= 32
	}
	return string(buf[:])
}
