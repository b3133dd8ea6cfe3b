package config

import (
	"fmt"
	"strings"
)

// ValidationError lists config fields that are missing or inconsistent.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid or missing fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns the offending field names in check order.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

type problems []string

func (p *problems) require(ok bool, field string) {
	if !ok {
		*p = append(*p, field)
	}
}

func validate(cfg Config) error {
	var p problems

	p.require(cfg.Server.Port != "", "Server.Port")
	p.require(cfg.Server.PublicBaseURL != "", "Server.PublicBaseURL")

	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageFirestore:
		p.require(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	case StoragePostgres:
		p.require(cfg.Postgres.DSN != "", "Postgres.DSN")
	default:
		p.require(false, "Storage.Backend")
	}
	p.require(cfg.Postgres.MaxConns > 0, "Postgres.MaxConns")

	// Order events go to at most one broker.
	kafka := len(cfg.Kafka.Brokers) > 0
	p.require(!(kafka && cfg.PubSub.Topic != ""), "Kafka.Brokers")
	p.require(!kafka || cfg.Kafka.Topic != "", "Kafka.Topic")
	p.require(cfg.PubSub.Topic == "" || cfg.PubSub.ProjectID != "", "PubSub.ProjectID")

	payments := cfg.Payments
	p.require(payments.Stripe.APIKey != "" || payments.LiqPay.PublicKey != "" || payments.Manual.InstructionsURL != "", "Payments")
	p.require(payments.LiqPay.PublicKey == "" || payments.LiqPay.PrivateKey != "", "Payments.LiqPay.PrivateKey")
	p.require(payments.Stripe.APIKey == "" || payments.Stripe.WebhookSecret != "", "Payments.Stripe.WebhookSecret")

	checkout := cfg.Checkout
	p.require(checkout.SuccessURL != "", "Checkout.SuccessURL")
	p.require(checkout.CancelURL != "", "Checkout.CancelURL")
	p.require(checkout.OrderNumberPrefix != "", "Checkout.OrderNumberPrefix")
	p.require(checkout.MaxNumberAttempts > 0, "Checkout.MaxNumberAttempts")
	p.require(checkout.StalePendingAge > 0, "Checkout.StalePendingAge")

	idem := cfg.Idempotency
	p.require(strings.TrimSpace(idem.Header) != "", "Idempotency.Header")
	p.require(idem.TTL > 0, "Idempotency.TTL")
	p.require(idem.CleanupInterval > 0, "Idempotency.CleanupInterval")
	p.require(idem.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")

	if len(p) > 0 {
		return &ValidationError{fields: p}
	}
	return nil
}
