package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderAdjudicated = "OrderAdjudicated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`                 // uuid
	EventType     string          `json:"event_type"`               // one of the consts above
	EventVersion  int             `json:"event_version"`            // 1
	OccurredAt    time.Time       `json:"occurred_at"`              // RFC3339
	Producer      string          `json:"producer"`                 // e.g., "shop-bot"
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	ExternalID string `json:"external_id,omitempty"`
	UserID     int64  `json:"user_id"`
	ProductID  string `json:"product_id"`
	Price      int64  `json:"price"`
}

type OrderAdjudicatedPayload struct {
	OrderID   string `json:"order_id"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	DecidedBy int64  `json:"decided_by"`
}
