package firestore

import (
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

type orderDocument struct {
	ID               string                 `firestore:"id"`
	OrderNumber      string                 `firestore:"orderNumber"`
	Items            []lineItemDocument     `firestore:"items"`
	Subtotal         int64                  `firestore:"subtotal"`
	Total            int64                  `firestore:"total"`
	Currency         string                 `firestore:"currency"`
	Customer         customerDocument       `firestore:"customer"`
	Locale           string                 `firestore:"locale,omitempty"`
	Status           string                 `firestore:"status"`
	PaymentProvider  string                 `firestore:"paymentProvider"`
	PaymentReference string                 `firestore:"paymentReference,omitempty"`
	PaymentStatusRaw string                 `firestore:"paymentStatusRaw,omitempty"`
	PaidAt           *time.Time             `firestore:"paidAt,omitempty"`
	NeedsReview      bool                   `firestore:"needsReview"`
	ReviewReason     string                 `firestore:"reviewReason,omitempty"`
	History          []statusChangeDocument `firestore:"history"`
	Version          int64                  `firestore:"version"`
	CreatedAt        time.Time              `firestore:"createdAt"`
	UpdatedAt        time.Time              `firestore:"updatedAt"`
}

type lineItemDocument struct {
	ReferenceID string `firestore:"referenceId"`
	Kind        string `firestore:"kind"`
	Name        string `firestore:"name"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Quantity    int    `firestore:"quantity"`
	Currency    string `firestore:"currency"`
	BookingDate string `firestore:"bookingDate,omitempty"`
	BookingTime string `firestore:"bookingTime,omitempty"`
}

type customerDocument struct {
	FirstName string           `firestore:"firstName"`
	LastName  string           `firestore:"lastName"`
	Email     string           `firestore:"email"`
	Phone     string           `firestore:"phone"`
	Address   *addressDocument `firestore:"address,omitempty"`
}

type addressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type statusChangeDocument struct {
	From   string    `firestore:"from"`
	To     string    `firestore:"to"`
	Actor  string    `firestore:"actor,omitempty"`
	Reason string    `firestore:"reason,omitempty"`
	At     time.Time `firestore:"at"`
}

type notificationDocument struct {
	OrderNumber  string    `firestore:"orderNumber,omitempty"`
	Provider     string    `firestore:"provider"`
	Reference    string    `firestore:"reference,omitempty"`
	RawStatus    string    `firestore:"rawStatus,omitempty"`
	Amount       *int64    `firestore:"amount,omitempty"`
	Currency     string    `firestore:"currency,omitempty"`
	EventID      string    `firestore:"eventId,omitempty"`
	DedupeKey    string    `firestore:"dedupeKey"`
	Outcome      string    `firestore:"outcome"`
	TargetStatus string    `firestore:"targetStatus,omitempty"`
	Detail       string    `firestore:"detail,omitempty"`
	ReceivedAt   time.Time `firestore:"receivedAt"`
	ProcessedAt  time.Time `firestore:"processedAt"`
}

type catalogDocument struct {
	ReferenceID string `firestore:"referenceId"`
	Kind        string `firestore:"kind"`
	Name        string `firestore:"name"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Currency    string `firestore:"currency"`
	Active      bool   `firestore:"active"`
}

type referenceDocument struct {
	OrderNumber string    `firestore:"orderNumber"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Items:            make([]lineItemDocument, 0, len(order.Items)),
		Subtotal:         order.Subtotal,
		Total:            order.Total,
		Currency:         order.Currency,
		Customer:         encodeCustomer(order.Customer),
		Locale:           order.Locale,
		Status:           string(order.Status),
		PaymentProvider:  order.PaymentProvider,
		PaymentReference: order.PaymentReference,
		PaymentStatusRaw: order.PaymentStatusRaw,
		NeedsReview:      order.NeedsReview,
		ReviewReason:     order.ReviewReason,
		History:          encodeHistory(order.History),
		Version:          order.Version,
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
	}
	if order.PaidAt != nil {
		paidAt := order.PaidAt.UTC()
		doc.PaidAt = &paidAt
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, lineItemDocument{
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
	return doc
}

func encodeCustomer(customer domain.Customer) customerDocument {
	doc := customerDocument{
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Email:     customer.Email,
		Phone:     customer.Phone,
	}
	if addr := customer.Address; addr != nil {
		doc.Address = &addressDocument{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			Region:     addr.Region,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return doc
}

func encodeHistory(history []domain.StatusChange) []statusChangeDocument {
	out := make([]statusChangeDocument, 0, len(history))
	for _, change := range history {
		out = append(out, statusChangeDocument{
			From:   string(change.From),
			To:     string(change.To),
			Actor:  change.Actor,
			Reason: change.Reason,
			At:     change.At.UTC(),
		})
	}
	return out
}

func decodeOrder(doc orderDocument) domain.Order {
	order := domain.Order{
		ID:               doc.ID,
		OrderNumber:      doc.OrderNumber,
		Items:            make([]domain.LineItem, 0, len(doc.Items)),
		Subtotal:         doc.Subtotal,
		Total:            doc.Total,
		Currency:         doc.Currency,
		Locale:           doc.Locale,
		Status:           domain.OrderStatus(doc.Status),
		PaymentProvider:  doc.PaymentProvider,
		PaymentReference: doc.PaymentReference,
		PaymentStatusRaw: doc.PaymentStatusRaw,
		NeedsReview:      doc.NeedsReview,
		ReviewReason:     doc.ReviewReason,
		History:          make([]domain.StatusChange, 0, len(doc.History)),
		Version:          doc.Version,
		CreatedAt:        doc.CreatedAt.UTC(),
		UpdatedAt:        doc.UpdatedAt.UTC(),
		Customer: domain.Customer{
			FirstName: doc.Customer.FirstName,
			LastName:  doc.Customer.LastName,
			Email:     doc.Customer.Email,
			Phone:     doc.Customer.Phone,
		},
	}
	if doc.PaidAt != nil {
		paidAt := doc.PaidAt.UTC()
		order.PaidAt = &paidAt
	}
	if addr := doc.Customer.Address; addr != nil {
		order.Customer.Address = &domain.Address{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			Region:     addr.Region,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.LineItem{
			ReferenceID: item.ReferenceID,
			Kind:        domain.ItemKind(item.Kind),
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Currency:    item.Currency,
			BookingDate: item.BookingDate,
			BookingTime: item.BookingTime,
		})
	}
	for _, change := range doc.History {
		order.History = append(order.History, domain.StatusChange{
			From:   domain.OrderStatus(change.From),
			To:     domain.OrderStatus(change.To),
			Actor:  change.Actor,
			Reason: change.Reason,
			At:     change.At.UTC(),
		})
	}
	return order
}

func encodeNotification(record domain.NotificationRecord) notificationDocument {
	return notificationDocument{
		OrderNumber:  record.OrderNumber,
		Provider:     record.Provider,
		Reference:    record.Reference,
		RawStatus:    record.RawStatus,
		Amount:       record.Amount,
		Currency:     record.Currency,
		EventID:      record.EventID,
		DedupeKey:    record.DedupeKey,
		Outcome:      string(record.Outcome),
		TargetStatus: string(record.TargetStatus),
		Detail:       record.Detail,
		ReceivedAt:   record.ReceivedAt.UTC(),
		ProcessedAt:  record.ProcessedAt.UTC(),
	}
}

func decodeNotification(id string, doc notificationDocument) domain.NotificationRecord {
	return domain.NotificationRecord{
		ID:           id,
		OrderNumber:  doc.OrderNumber,
		Provider:     doc.Provider,
		Reference:    doc.Reference,
		RawStatus:    doc.RawStatus,
		Amount:       doc.Amount,
		Currency:     doc.Currency,
		EventID:      doc.EventID,
		DedupeKey:    doc.DedupeKey,
		Outcome:      domain.NotificationOutcome(doc.Outcome),
		TargetStatus: domain.OrderStatus(doc.TargetStatus),
		Detail:       doc.Detail,
		ReceivedAt:   doc.ReceivedAt.UTC(),
		ProcessedAt:  doc.ProcessedAt.UTC(),
	}
}
