// Package events publishes order domain events to external brokers.
package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const schemaVersion = "1"

// Message is the wire form of an order event shared by every broker.
type Message struct {
	Type           string         `json:"type"`
	SchemaVersion  string         `json:"schemaVersion"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func newMessage(event services.OrderEvent) Message {
	return Message{
		Type:           strings.TrimSpace(event.Type),
		SchemaVersion:  schemaVersion,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	}
}

func encode(marshal func(any) ([]byte, error), event services.OrderEvent) ([]byte, map[string]string, error) {
	data, err := marshal(newMessage(event))
	if err != nil {
		return nil, nil, err
	}
	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "status", event.CurrentStatus)
	attrs["schemaVersion"] = schemaVersion
	return data, attrs, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var defaultMarshal = json.Marshal
