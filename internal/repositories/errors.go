package repositories

import (
	"errors"
	"fmt"
)

// ErrPaymentReferenceTaken marks an order update whose payment reference is already bound to a
// different order. It is reported with ErrorKindConflict but retrying cannot resolve it.
var ErrPaymentReferenceTaken = errors.New("payment reference already assigned to another order")

// ErrorKind categorises a StoreError.
type ErrorKind int

const (
	// ErrorKindUnknown is an uncategorised failure.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindNotFound means the record does not exist.
	ErrorKindNotFound
	// ErrorKindConflict means a unique constraint or version precondition failed.
	ErrorKindConflict
	// ErrorKindUnavailable means the backend is temporarily unreachable.
	ErrorKindUnavailable
)

// StoreError is the RepositoryError used by the memory and SQL adapters.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

var _ RepositoryError = (*StoreError)(nil)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := "repository error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound implements RepositoryError.
func (e *StoreError) IsNotFound() bool { return e != nil && e.Kind == ErrorKindNotFound }

// IsConflict implements RepositoryError.
func (e *StoreError) IsConflict() bool { return e != nil && e.Kind == ErrorKindConflict }

// IsUnavailable implements RepositoryError.
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }

// NewNotFound builds a not-found StoreError.
func NewNotFound(op, format string, args ...any) error {
	return &StoreError{Op: op, Kind: ErrorKindNotFound, Err: fmt.Errorf(format, args...)}
}

// NewConflict builds a conflict StoreError.
func NewConflict(op, format string, args ...any) error {
	return &StoreError{Op: op, Kind: ErrorKindConflict, Err: fmt.Errorf(format, args...)}
}

// NewReferenceTaken builds the conflict returned when reference belongs to another order.
func NewReferenceTaken(op, reference string) error {
	return &StoreError{Op: op, Kind: ErrorKindConflict, Err: fmt.Errorf("%w: %s", ErrPaymentReferenceTaken, reference)}
}

// NewUnavailable wraps err as a transient StoreError.
func NewUnavailable(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrorKindUnavailable, Err: err}
}

// IsNotFound reports whether err carries RepositoryError.IsNotFound.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries RepositoryError.IsConflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err carries RepositoryError.IsUnavailable.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
