package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	pfirestore "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/firestore"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const notificationsCollection = "payment_notifications"

// NotificationRepository appends payment notification records. Records are immutable.
type NotificationRepository struct {
	records *pfirestore.Collection[notificationDocument]
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	return &NotificationRepository{
		records: pfirestore.NewCollection[notificationDocument](provider, notificationsCollection, nil),
	}, nil
}

func (r *NotificationRepository) Record(ctx context.Context, record domain.NotificationRecord) error {
	return r.records.Create(ctx, strings.TrimSpace(record.ID), encodeNotification(record))
}

func (r *NotificationRepository) ListByOrder(ctx context.Context, orderNumber string) ([]domain.NotificationRecord, error) {
	docs, err := r.records.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", strings.TrimSpace(orderNumber)).OrderBy("receivedAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.NotificationRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeNotification(doc.ID, doc.Data))
	}
	return out, nil
}
