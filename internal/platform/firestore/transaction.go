package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// TxFunc runs inside a transaction. It may be invoked more than once on contention.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes RunTransaction.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps how often Firestore retries a contended transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) { s.attempts = attempts }
}

// WithTxTimeout bounds the whole transaction including retries.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) { s.timeout = timeout }
}

// RunTransaction runs fn in a read-write transaction and maps the result through WrapError.
// Order status changes and checkout reservations go through here.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil || fn == nil {
		return WrapError("transaction", errors.New("firestore: client and function are required"))
	}
	s := txSettings{attempts: 5, timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var txOpts []firestore.TransactionOption
	if s.attempts > 0 {
		txOpts = append(txOpts, firestore.MaxAttempts(s.attempts))
	}
	return WrapError("transaction", client.RunTransaction(ctx, fn, txOpts...))
}
