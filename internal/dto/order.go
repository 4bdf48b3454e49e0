package dto

import (
	"time"

	"github.com/Additional-Code/tradehub/internal/entity"
)

// PlaceOrderRequest is the buyer checkout payload.
type PlaceOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
}

// OrderItemRequest references one product and a requested quantity.
type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// OrderItemResponse is one order line as exposed over HTTP.
type OrderItemResponse struct {
	ProductID      int64 `json:"product_id"`
	SellerID       int64 `json:"seller_id"`
	Quantity       int64 `json:"quantity"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64               `json:"id"`
	BuyerID         int64               `json:"buyer_id"`
	SellerID        int64               `json:"seller_id"`
	TotalCents      int64               `json:"total_cents"`
	ShippingAddress string              `json:"shipping_address"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewOrderResponse maps an order entity onto its transport form.
func NewOrderResponse(order *entity.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID:      item.ProductID,
			SellerID:       item.SellerID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return OrderResponse{
		ID:              order.ID,
		BuyerID:         order.BuyerID,
		SellerID:        order.SellerID,
		TotalCents:      order.TotalCents,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// NewOrderResponses maps a page of orders.
func NewOrderResponses(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, NewOrderResponse(order))
	}
	return out
}
