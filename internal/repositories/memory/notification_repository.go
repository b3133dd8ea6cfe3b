package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// NotificationRepository appends notification records in memory.
type NotificationRepository struct {
	mu      sync.Mutex
	records []domain.NotificationRecord
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository constructs an empty NotificationRepository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Record implements repositories.NotificationRepository.
func (r *NotificationRepository) Record(_ context.Context, record domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ID == record.ID {
			return repositories.NewConflict("notifications.record", "record %s exists", record.ID)
		}
	}
	r.records = append(r.records, record)
	return nil
}

// ListByOrder implements repositories.NotificationRepository, oldest first.
func (r *NotificationRepository) ListByOrder(_ context.Context, orderNumber string) ([]domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	number := strings.TrimSpace(orderNumber)
	out := make([]domain.NotificationRecord, 0)
	for _, record := range r.records {
		if record.OrderNumber == number {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// All returns every record, including those that matched no order.
func (r *NotificationRepository) All() []domain.NotificationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.NotificationRecord(nil), r.records...)
}
