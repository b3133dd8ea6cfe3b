// Package firestore implements the order pipeline stores on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	pfirestore "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/firestore"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	ordersCollection     = "orders"
	referencesCollection = "order_payment_references"
	defaultPageSize      = 50
	maxPageSize          = 200
)

// OrderRepository stores orders keyed by order number. Payment references are claimed through a
// companion collection so one reference never binds two orders.
type OrderRepository struct {
	provider   *pfirestore.Provider
	orders     *pfirestore.Collection[orderDocument]
	references *pfirestore.Collection[referenceDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:   provider,
		orders:     pfirestore.NewCollection[orderDocument](provider, ordersCollection, nil),
		references: pfirestore.NewCollection[referenceDocument](provider, referencesCollection, nil),
	}, nil
}

// Insert creates the order document. An existing order number surfaces as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	number := strings.TrimSpace(order.OrderNumber)
	if number == "" {
		return errors.New("order repository: order number is required")
	}
	if order.Version == 0 {
		order.Version = 1
	}
	orderRef, err := r.orders.Doc(ctx, number)
	if err != nil {
		return err
	}
	var refRef *firestore.DocumentRef
	if order.PaymentReference != "" {
		if refRef, err = r.references.Doc(ctx, referenceDocID(order.PaymentProvider, order.PaymentReference)); err != nil {
			return err
		}
	}

	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(orderRef, encodeOrder(order)); err != nil {
			return err
		}
		if refRef != nil {
			return tx.Create(refRef, referenceDocument{OrderNumber: number, CreatedAt: order.CreatedAt.UTC()})
		}
		return nil
	})
}

// FindByNumber loads one order.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.Data), nil
}

// FindByPaymentReference resolves the reference claim and loads its order.
func (r *OrderRepository) FindByPaymentReference(ctx context.Context, provider, reference string) (domain.Order, error) {
	claim, err := r.references.Get(ctx, referenceDocID(provider, reference))
	if err != nil {
		return domain.Order{}, err
	}
	order, err := r.FindByNumber(ctx, claim.Data.OrderNumber)
	if err != nil {
		return domain.Order{}, err
	}
	if !strings.EqualFold(order.PaymentProvider, strings.TrimSpace(provider)) {
		return domain.Order{}, repositories.NewNotFound("orders.find_by_reference", "no %s order for reference %s", provider, reference)
	}
	return order, nil
}

// Update writes the lifecycle fields when the stored version equals expectedVersion. Items,
// totals and customer are never rewritten.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	number := strings.TrimSpace(order.OrderNumber)
	orderRef, err := r.orders.Doc(ctx, number)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		current, err := r.orders.Decode(snap)
		if err != nil {
			return err
		}
		stored := decodeOrder(current.Data)
		if stored.Version != expectedVersion {
			return status.Errorf(codes.FailedPrecondition, "order %s version %d, expected %d", number, stored.Version, expectedVersion)
		}

		var claimRef *firestore.DocumentRef
		if order.PaymentReference != "" && order.PaymentReference != stored.PaymentReference {
			ref, err := r.references.Doc(ctx, referenceDocID(stored.PaymentProvider, order.PaymentReference))
			if err != nil {
				return err
			}
			claimRef = ref
			claim, err := tx.Get(claimRef)
			switch {
			case err == nil:
				var existing referenceDocument
				if err := claim.DataTo(&existing); err != nil {
					return err
				}
				if existing.OrderNumber != number {
					return repositories.NewReferenceTaken("orders.update", order.PaymentReference)
				}
				claimRef = nil
			case status.Code(err) != codes.NotFound:
				return err
			}
		}

		updated = stored.Clone()
		updated.Status = order.Status
		updated.PaymentReference = order.PaymentReference
		updated.PaymentStatusRaw = order.PaymentStatusRaw
		updated.PaidAt = order.PaidAt
		updated.NeedsReview = order.NeedsReview
		updated.ReviewReason = order.ReviewReason
		updated.History = append([]domain.StatusChange(nil), order.History...)
		updated.UpdatedAt = order.UpdatedAt.UTC()
		updated.Version = stored.Version + 1

		if claimRef != nil {
			if err := tx.Create(claimRef, referenceDocument{OrderNumber: number, CreatedAt: updated.UpdatedAt}); err != nil {
				return err
			}
		}
		return tx.Update(orderRef, lifecycleUpdates(updated))
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return updated, nil
}

// List pages through orders newest first using the shared keyset cursor.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, hasCursor, err := repositories.DecodeOrderCursor(filter.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := repositories.NormalizePageSize(filter.PageSize, defaultPageSize, maxPageSize)

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.NeedsReview != nil {
			q = q.Where("needsReview", "==", *filter.NeedsReview)
		}
		if filter.CreatedAfter != nil {
			q = q.Where("createdAt", ">", filter.CreatedAfter.UTC())
		}
		if filter.CreatedBefore != nil {
			q = q.Where("createdAt", "<", filter.CreatedBefore.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy("orderNumber", firestore.Desc)
		if hasCursor {
			q = q.StartAfter(cursor.CreatedAt, cursor.OrderNumber)
		}
		return q.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, min(len(docs), size))}
	for i, doc := range docs {
		if i == size {
			token, err := repositories.EncodeOrderCursor(page.Items[size-1])
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, decodeOrder(doc.Data))
	}
	return page, nil
}

// ListStalePending returns pending orders created before createdBefore, oldest first.
func (r *OrderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("status", "==", string(domain.OrderStatusPending)).
			Where("createdAt", "<", createdBefore.UTC()).
			OrderBy("createdAt", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.Data))
	}
	return orders, nil
}

func lifecycleUpdates(order domain.Order) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: string(order.Status)},
		{Path: "needsReview", Value: order.NeedsReview},
		{Path: "history", Value: encodeHistory(order.History)},
		{Path: "version", Value: order.Version},
		{Path: "updatedAt", Value: order.UpdatedAt},
	}
	optional := func(path, value string) {
		if value == "" {
			updates = append(updates, firestore.Update{Path: path, Value: firestore.Delete})
			return
		}
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	optional("paymentReference", order.PaymentReference)
	optional("paymentStatusRaw", order.PaymentStatusRaw)
	optional("reviewReason", order.ReviewReason)
	if order.PaidAt == nil {
		updates = append(updates, firestore.Update{Path: "paidAt", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "paidAt", Value: order.PaidAt.UTC()})
	}
	return updates
}

func referenceDocID(provider, reference string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(provider)) + ":" + strings.TrimSpace(reference))
}
