package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is a sellable catalog item. Quantity is stock on hand and must
// never go negative; SoldCount mirrors every quantity movement with the
// opposite sign and equal magnitude.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	Name        string    `bun:"name" json:"name"`
	Description string    `bun:"description" json:"description"`
	PriceCents  int64     `bun:"price_cents" json:"price_cents"`
	Category    string    `bun:"category" json:"category"`
	Quantity    int64     `bun:"quantity" json:"quantity"`
	Images      []string  `bun:"images" json:"images"`
	SellerID    int64     `bun:"seller_id" json:"seller_id"`
	Ratings     []int     `bun:"ratings" json:"ratings"`
	Discount    int64     `bun:"discount" json:"discount"`
	SoldCount   int64     `bun:"sold_count" json:"sold_count"`
	Tags        []string  `bun:"tags" json:"tags"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// StockDelta is one signed inventory adjustment for a product. Quantity
// moves by +N and SoldCount by -N for a restock; a deduction reverses the
// signs. Deltas are applied batched per order transition.
type StockDelta struct {
	ProductID int64
	Quantity  int64
}
