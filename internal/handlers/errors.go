package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

// writeOrderError maps pipeline errors onto the JSON error envelope.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var validation *services.ValidationError
	if errors.As(err, &validation) {
		apiErr := httpx.NewError("validation_failed", err.Error(), http.StatusUnprocessableEntity)
		if len(validation.Fields) > 0 {
			apiErr = apiErr.WithDetails(map[string]any{"fields": validation.Fields})
		}
		httpx.WriteError(ctx, w, apiErr)
		return
	}

	var session *services.PaymentSessionError
	if errors.As(err, &session) {
		httpx.WriteError(ctx, w, httpx.NewError("payment_session_failed", "payment provider is unavailable; the order stays pending", http.StatusBadGateway).
			WithDetails(map[string]any{"orderNumber": session.OrderNumber}))
		return
	}

	switch {
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart has no items", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrUnsupportedCurrency), errors.Is(err, pricing.ErrUnknownCurrency):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_currency", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, pricing.ErrCurrencyMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("currency_mismatch", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, pricing.ErrInvalidQuantity), errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, pricing.ErrAmountOverflow), errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrQuantityImmutable):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_item", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, cart.ErrDuplicateBooking):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_booking", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCartUnknownItem):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_item", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartInvalidClient):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_client_id", err.Error(), http.StatusBadRequest))
	case errors.Is(err, cart.ErrItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "cart item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderClosed):
		httpx.WriteError(ctx, w, httpx.NewError("order_closed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("illegal_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPaymentReferenceRequired):
		httpx.WriteError(ctx, w, httpx.NewError("payment_reference_required", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderNumberExhausted), errors.Is(err, services.ErrOrderUnavailable),
		errors.Is(err, cart.ErrPersistence):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order storage is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
