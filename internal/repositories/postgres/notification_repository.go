package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// NotificationRepository appends rows to payment_notifications.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// Record appends a notification record. Records are never updated.
func (r *NotificationRepository) Record(ctx context.Context, record domain.NotificationRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO payment_notifications (
			id, order_number, provider, reference, raw_status, amount, currency, event_id,
			dedupe_key, outcome, target_status, detail, received_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		record.ID, record.OrderNumber, record.Provider, record.Reference, record.RawStatus,
		record.Amount, record.Currency, record.EventID, record.DedupeKey, string(record.Outcome),
		string(record.TargetStatus), record.Detail, record.ReceivedAt.UTC(), record.ProcessedAt.UTC(),
	)
	return mapError("notifications.record", err)
}

// ListByOrder implements repositories.NotificationRepository.
func (r *NotificationRepository) ListByOrder(ctx context.Context, orderNumber string) ([]domain.NotificationRecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, order_number, provider, reference, raw_status, amount, currency, event_id,
			dedupe_key, outcome, target_status, detail, received_at, processed_at
		FROM payment_notifications
		WHERE order_number = $1
		ORDER BY received_at ASC, id ASC`, strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, mapError("notifications.list", err)
	}
	defer rows.Close()

	records := make([]domain.NotificationRecord, 0)
	for rows.Next() {
		var (
			record          domain.NotificationRecord
			outcome, target string
		)
		if err := rows.Scan(
			&record.ID, &record.OrderNumber, &record.Provider, &record.Reference, &record.RawStatus,
			&record.Amount, &record.Currency, &record.EventID, &record.DedupeKey, &outcome, &target,
			&record.Detail, &record.ReceivedAt, &record.ProcessedAt,
		); err != nil {
			return nil, mapError("notifications.list", err)
		}
		record.Outcome = domain.NotificationOutcome(outcome)
		record.TargetStatus = domain.OrderStatus(target)
		record.ReceivedAt = record.ReceivedAt.UTC()
		record.ProcessedAt = record.ProcessedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("notifications.list", err)
	}
	return records, nil
}
