package payments

import (
	"strings"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

// StatusTable maps a provider's raw status strings (lower-cased) to order statuses.
type StatusTable map[string]domain.OrderStatus

// This is the only place raw provider strings are interpreted.
var statusTables = map[string]StatusTable{
	"stripe": {
		"checkout.session.completed":               domain.OrderStatusPaid,
		"checkout.session.completed.unpaid":        domain.OrderStatusProcessing,
		"checkout.session.async_payment_succeeded": domain.OrderStatusPaid,
		"checkout.session.async_payment_failed":    domain.OrderStatusFailed,
		"checkout.session.expired":                 domain.OrderStatusCancelled,
		"payment_intent.processing":                domain.OrderStatusProcessing,
		"payment_intent.succeeded":                 domain.OrderStatusPaid,
		"payment_intent.payment_failed":            domain.OrderStatusFailed,
		"payment_intent.canceled":                  domain.OrderStatusCancelled,
		"charge.refunded":                          domain.OrderStatusRefunded,
	},
	"liqpay": {
		"success":      domain.OrderStatusPaid,
		"sandbox":      domain.OrderStatusPaid,
		"failure":      domain.OrderStatusFailed,
		"error":        domain.OrderStatusFailed,
		"reversed":     domain.OrderStatusRefunded,
		"processing":   domain.OrderStatusProcessing,
		"prepared":     domain.OrderStatusProcessing,
		"wait_secure":  domain.OrderStatusProcessing,
		"wait_accept":  domain.OrderStatusProcessing,
		"3ds_verify":   domain.OrderStatusProcessing,
		"otp_verify":   domain.OrderStatusProcessing,
		"hold_wait":    domain.OrderStatusProcessing,
		"wait_reserve": domain.OrderStatusProcessing,
	},
	"manual": {
		"paid":       domain.OrderStatusPaid,
		"success":    domain.OrderStatusPaid,
		"processing": domain.OrderStatusProcessing,
		"failed":     domain.OrderStatusFailed,
		"declined":   domain.OrderStatusFailed,
		"cancelled":  domain.OrderStatusCancelled,
		"refunded":   domain.OrderStatusRefunded,
		"completed":  domain.OrderStatusCompleted,
	},
}

// MapStatus translates a raw provider status. ok is false for unknown providers or statuses.
func MapStatus(provider, rawStatus string) (domain.OrderStatus, bool) {
	table, ok := statusTables[providerKey(provider)]
	if !ok {
		return "", false
	}
	status, ok := table[strings.ToLower(strings.TrimSpace(rawStatus))]
	return status, ok
}
