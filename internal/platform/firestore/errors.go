package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// WrapError maps a Firestore gRPC status onto repositories.StoreError kinds so services can
// treat every backend alike. Cancellation and deadlines come back as the context errors.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	kind := repositories.ErrorKindUnknown
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.NotFound:
		kind = repositories.ErrorKindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		kind = repositories.ErrorKindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		kind = repositories.ErrorKindUnavailable
	}
	return &repositories.StoreError{Op: op, Kind: kind, Err: err}
}
