package order

import "time"

// Event types published to the order event topic.
const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

// Event is the envelope emitted on every order lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	BuyerID    int64     `json:"buyer_id"`
	SellerID   int64     `json:"seller_id"`
	TotalCents int64     `json:"total_cents"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
