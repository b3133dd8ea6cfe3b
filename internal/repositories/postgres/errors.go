package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	paymentReferenceConstraint = "orders_payment_reference_key"
)

// mapError categorises pgx failures into repositories.StoreError kinds.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &repositories.StoreError{Op: op, Kind: repositories.ErrorKindNotFound, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == paymentReferenceConstraint {
			return &repositories.StoreError{Op: op, Kind: repositories.ErrorKindConflict, Err: fmt.Errorf("%w: %s", repositories.ErrPaymentReferenceTaken, pgErr.Detail)}
		}
		switch pgErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return &repositories.StoreError{Op: op, Kind: repositories.ErrorKindConflict, Err: err}
		}
		return &repositories.StoreError{Op: op, Kind: repositories.ErrorKindUnknown, Err: err}
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return repositories.NewUnavailable(op, err)
	}
	return &repositories.StoreError{Op: op, Kind: repositories.ErrorKindUnknown, Err: err}
}
