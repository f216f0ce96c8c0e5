// Package events publishes order lifecycle events. Downstream consumers
// (notification jobs, dashboards) are out of process; the service only
// guarantees best-effort delivery and never fails a request over it.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types carried in the envelope.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
)

// Envelope wraps every published event with versioned metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope builds a v1 envelope around a payload. correlationID is the
// order id the event concerns.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// OrderItemPayload is one snapshot line of an order event.
type OrderItemPayload struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
}

// OrderCreatedPayload announces a new pending order.
type OrderCreatedPayload struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	TotalAmount int64              `json:"total_amount"`
	Items       []OrderItemPayload `json:"items"`
}

// OrderConfirmedPayload announces a successful payment confirmation.
type OrderConfirmedPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	PaymentKey string `json:"payment_key"`
	Amount     int64  `json:"amount"`
}
