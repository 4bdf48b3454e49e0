package dto

import (
	"time"

	"github.com/Additional-Code/tradehub/internal/entity"
)

// CreateProductRequest carries the non-file fields of a product upload.
type CreateProductRequest struct {
	Name        string   `json:"name" form:"name"`
	Description string   `json:"description" form:"description"`
	PriceCents  int64    `json:"price_cents" form:"price_cents"`
	Category    string   `json:"category" form:"category"`
	Quantity    int64    `json:"quantity" form:"quantity"`
	Tags        []string `json:"tags" form:"tags"`
}

// UpdateProductRequest carries mutable product fields; nil means unchanged.
type UpdateProductRequest struct {
	Name        *string  `json:"name" form:"name"`
	Description *string  `json:"description" form:"description"`
	PriceCents  *int64   `json:"price_cents" form:"price_cents"`
	Category    *string  `json:"category" form:"category"`
	Quantity    *int64   `json:"quantity" form:"quantity"`
	Discount    *int64   `json:"discount" form:"discount"`
	Tags        []string `json:"tags" form:"tags"`
}

// ProductResponse represents a product as exposed via transport layers.
type ProductResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category"`
	Quantity    int64     `json:"quantity"`
	Images      []string  `json:"images"`
	SellerID    int64     `json:"seller_id"`
	Ratings     []int     `json:"ratings"`
	Discount    int64     `json:"discount"`
	SoldCount   int64     `json:"sold_count"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProductResponse maps a product entity onto its transport form.
func NewProductResponse(product *entity.Product) ProductResponse {
	return ProductResponse{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Category:    product.Category,
		Quantity:    product.Quantity,
		Images:      product.Images,
		SellerID:    product.SellerID,
		Ratings:     product.Ratings,
		Discount:    product.Discount,
		SoldCount:   product.SoldCount,
		Tags:        product.Tags,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

// NewProductResponses maps a page of products.
func NewProductResponses(products []*entity.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		out = append(out, NewProductResponse(product))
	}
	return out
}
