package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	orderColumns = `id, order_number, items, subtotal, total, currency, customer, locale, status,
		payment_provider, payment_reference, payment_status_raw, paid_at, needs_review, review_reason,
		history, version, created_at, updated_at`
)

// OrderRepository stores orders in the orders table. UNIQUE(order_number) and the partial unique
// index on (payment_provider, payment_reference) back the uniqueness guarantees.
type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

type itemJSON struct {
	ReferenceID string `json:"referenceId"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Currency    string `json:"currency"`
	BookingDate string `json:"bookingDate,omitempty"`
	BookingTime string `json:"bookingTime,omitempty"`
}

type customerJSON struct {
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Address   *domain.Address `json:"address,omitempty"`
}

type statusChangeJSON struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Insert stores a new order at version 1 unless the order carries a version. A duplicate
// order number or payment reference is reported as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	items, customer, history, err := encodeOrderJSON(order)
	if err != nil {
		return err
	}
	version := order.Version
	if version == 0 {
		version = 1
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		order.ID, order.OrderNumber, items, order.Subtotal, order.Total, order.Currency, customer,
		order.Locale, string(order.Status), order.PaymentProvider, nullable(order.PaymentReference),
		order.PaymentStatusRaw, order.PaidAt, order.NeedsReview, order.ReviewReason, history, version,
		order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	return mapError("orders.insert", err)
}

// FindByNumber implements repositories.OrderRepository.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, strings.TrimSpace(orderNumber))
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, mapError("orders.find", err)
	}
	return order, nil
}

// FindByPaymentReference looks an order up by the provider scoped payment reference.
func (r *OrderRepository) FindByPaymentReference(ctx context.Context, provider, reference string) (domain.Order, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_provider = $1 AND payment_reference = $2`,
		strings.ToLower(strings.TrimSpace(provider)), strings.TrimSpace(reference))
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, mapError("orders.find_by_reference", err)
	}
	return order, nil
}

// Update writes lifecycle columns guarded by the version column.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	history, err := json.Marshal(encodeHistory(order.History))
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.update: encode history: %w", err)
	}
	db := conn(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE orders SET
			status = $3,
			payment_reference = $4,
			payment_status_raw = $5,
			paid_at = $6,
			needs_review = $7,
			review_reason = $8,
			history = $9,
			updated_at = $10,
			version = version + 1
		WHERE order_number = $1 AND version = $2
		RETURNING `+orderColumns,
		strings.TrimSpace(order.OrderNumber), expectedVersion, string(order.Status),
		nullable(order.PaymentReference), order.PaymentStatusRaw, order.PaidAt, order.NeedsReview,
		order.ReviewReason, history, order.UpdatedAt.UTC(),
	)
	updated, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, order.OrderNumber).Scan(&exists); err != nil {
			return domain.Order{}, mapError("orders.update", err)
		}
		if !exists {
			return domain.Order{}, repositories.NewNotFound("orders.update", "order %s not found", order.OrderNumber)
		}
		return domain.Order{}, repositories.NewConflict("orders.update", "order %s is not at version %d", order.OrderNumber, expectedVersion)
	}
	if err != nil {
		return domain.Order{}, mapError("orders.update", err)
	}
	return updated, nil
}

// List pages orders newest first using the keyset cursor in filter.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, hasCursor, err := repositories.DecodeOrderCursor(filter.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := repositories.NormalizePageSize(filter.PageSize, defaultPageSize, maxPageSize)

	var (
		where []string
		args  []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if filter.NeedsReview != nil {
		where = append(where, "needs_review = "+arg(*filter.NeedsReview))
	}
	if filter.CreatedAfter != nil {
		where = append(where, "created_at > "+arg(filter.CreatedAfter.UTC()))
	}
	if filter.CreatedBefore != nil {
		where = append(where, "created_at < "+arg(filter.CreatedBefore.UTC()))
	}
	if hasCursor {
		where = append(where, "(created_at, order_number) < ("+arg(cursor.CreatedAt)+", "+arg(cursor.OrderNumber)+")")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, order_number DESC LIMIT " + arg(size+1)

	orders, err := r.query(ctx, "orders.list", query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	page := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > size {
		page.Items = orders[:size]
		token, err := repositories.EncodeOrderCursor(page.Items[size-1])
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListStalePending returns pending orders created before createdBefore, oldest first.
func (r *OrderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC`
	args := []any{string(domain.OrderStatusPending), createdBefore.UTC()}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	return r.query(ctx, "orders.list_stale", query, args...)
}

func (r *OrderRepository) query(ctx context.Context, op, sql string, args ...any) ([]domain.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order                    domain.Order
		items, customer, history []byte
		status                   string
		reference                *string
		paidAt                   *time.Time
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber, &items, &order.Subtotal, &order.Total, &order.Currency,
		&customer, &order.Locale, &status, &order.PaymentProvider, &reference,
		&order.PaymentStatusRaw, &paidAt, &order.NeedsReview, &order.ReviewReason, &history,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.Currency = strings.TrimSpace(order.Currency)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if reference != nil {
		order.PaymentReference = *reference
	}
	if paidAt != nil {
		utc := paidAt.UTC()
		order.PaidAt = &utc
	}
	if err := decodeOrderJSON(&order, items, customer, history); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func encodeOrderJSON(order domain.Order) (items, customer, history []byte, err error) {
	lines := make([]itemJSON, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, itemJSON{
			ReferenceID: item.ReferenceID,
			Kind:        string(item.Kind),
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Currency:    item.Currency,
			BookingDate: item.BookingDate,
			BookingTime: item.BookingTime,
		})
	}
	if items, err = json.Marshal(lines); err != nil {
		return nil, nil, nil, fmt.Errorf("orders: encode items: %w", err)
	}
	if customer, err = json.Marshal(customerJSON{
		FirstName: order.Customer.FirstName,
		LastName:  order.Customer.LastName,
		Email:     order.Customer.Email,
		Phone:     order.Customer.Phone,
		Address:   order.Customer.Address,
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("orders: encode customer: %w", err)
	}
	if history, err = json.Marshal(encodeHistory(order.History)); err != nil {
		return nil, nil, nil, fmt.Errorf("orders: encode history: %w", err)
	}
	return items, customer, history, nil
}

func decodeOrderJSON(order *domain.Order, items, customer, history []byte) error {
	var lines []itemJSON
	if err := json.Unmarshal(items, &lines); err != nil {
		return fmt.Errorf("orders: decode items: %w", err)
	}
	order.Items = make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		order.Items = append(order.Items, domain.LineItem{
			ReferenceID: line.ReferenceID,
			Kind:        domain.ItemKind(line.Kind),
			Name:        line.Name,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			Currency:    line.Currency,
			BookingDate: line.BookingDate,
			BookingTime: line.BookingTime,
		})
	}

	var c customerJSON
	if err := json.Unmarshal(customer, &c); err != nil {
		return fmt.Errorf("orders: decode customer: %w", err)
	}
	order.Customer = domain.Customer{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone, Address: c.Address}

	var changes []statusChangeJSON
	if err := json.Unmarshal(history, &changes); err != nil {
		return fmt.Errorf("orders: decode history: %w", err)
	}
	order.History = make([]domain.StatusChange, 0, len(changes))
	for _, change := range changes {
		order.History = append(order.History, domain.StatusChange{
			From:   domain.OrderStatus(change.From),
			To:     domain.OrderStatus(change.To),
			Actor:  change.Actor,
			Reason: change.Reason,
			At:     change.At.UTC(),
		})
	}
	return nil
}

func encodeHistory(history []domain.StatusChange) []statusChangeJSON {
	out := make([]statusChangeJSON, 0, len(history))
	for _, change := range history {
		out = append(out, statusChangeJSON{
			From:   string(change.From),
			To:     string(change.To),
			Actor:  change.Actor,
			Reason: change.Reason,
			At:     change.At.UTC(),
		})
	}
	return out
}

func nullable(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
