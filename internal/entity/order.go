package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a member of the order status domain.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CancellableByParticipant lists the states a buyer or seller may cancel from.
// Shipped orders are past the point of no return for non-admin callers.
var CancellableByParticipant = []OrderStatus{OrderPending, OrderProcessing}

// CancellableByAdmin lists the states an admin may cancel from.
var CancellableByAdmin = []OrderStatus{OrderPending, OrderProcessing, OrderShipped}

// AdminOverrideStatuses is the domain accepted by the admin flat status
// override. Cancellation is excluded: it must go through the cancel path so
// inventory restoration cannot be skipped.
var AdminOverrideStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderCompleted}

// StatusPriority orders seller listings: actionable states first.
var StatusPriority = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled}

// PaymentStatus tracks payment settlement independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether p is a member of the payment status domain.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// Order is a single-seller purchase. TotalCents is fixed at creation from
// the unit prices captured on the items. Orders are never deleted.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64         `bun:",pk,autoincrement" json:"id"`
	BuyerID         int64         `bun:"buyer_id" json:"buyer_id"`
	SellerID        int64         `bun:"seller_id" json:"seller_id"`
	TotalCents      int64         `bun:"total_cents" json:"total_cents"`
	ShippingAddress string        `bun:"shipping_address" json:"shipping_address"`
	Status          OrderStatus   `bun:"status" json:"status"`
	PaymentStatus   PaymentStatus `bun:"payment_status" json:"payment_status"`
	Items           []*OrderItem  `bun:"rel:has-many,join:id=order_id" json:"items"`
	CreatedAt       time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at"`
}

// OrderItem is one line of an order. SellerID and UnitPriceCents are
// denormalized at creation time so cancellation restores exactly what was
// deducted, regardless of later product edits.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID             int64 `bun:",pk,autoincrement" json:"id"`
	OrderID        int64 `bun:"order_id" json:"order_id"`
	ProductID      int64 `bun:"product_id" json:"product_id"`
	SellerID       int64 `bun:"seller_id" json:"seller_id"`
	Quantity       int64 `bun:"quantity" json:"quantity"`
	UnitPriceCents int64 `bun:"unit_price_cents" json:"unit_price_cents"`
}

// RestoreDeltas returns the inventory adjustments that exactly undo the
// deduction applied when the order was placed.
func (o *Order) RestoreDeltas() []StockDelta {
	deltas := make([]StockDelta, 0, len(o.Items))
	for _, item := range o.Items {
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return deltas
}
