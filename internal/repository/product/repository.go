package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tradehub/repository/product")

// ErrNotFound is returned when a product is missing.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError reports the product whose stock could not cover a
// requested deduction.
type InsufficientStockError struct {
	ProductID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// Repository encapsulates read/write access for products, including the
// inventory ledger used by order transitions.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new product using the write connection.
func (r *Repository) Create(ctx context.Context, product *entity.Product) error {
	if product == nil {
		return errors.New("nil product")
	}
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Create", trace.WithAttributes(attribute.String("product.name", product.Name)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(product).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a product by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product := new(entity.Product)
	err := r.reader.NewSelect().Model(product).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return product, nil
}

// GetManyByID fetches the given products keyed by id.
func (r *Repository) GetManyByID(ctx context.Context, ids []int64) (map[int64]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetManyByID")
	defer span.End()

	var products []*entity.Product
	if err := r.reader.NewSelect().Model(&products).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	byID := make(map[int64]*entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// Update persists mutable product fields.
func (r *Repository) Update(ctx context.Context, product *entity.Product) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Update", trace.WithAttributes(attribute.Int64("product.id", product.ID)))
	defer span.End()

	product.UpdatedAt = time.Now().UTC()
	_, err := r.writer.NewUpdate().Model(product).WherePK().Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// Delete removes a product. Returns ErrNotFound when no row matched.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.Product)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of products with the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*entity.Product, int64, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	var products []*entity.Product
	count, err := r.reader.NewSelect().Model(&products).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return products, int64(count), nil
}

// ListBySeller returns a page of a seller's products with the total count.
func (r *Repository) ListBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]*entity.Product, int64, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.ListBySeller", trace.WithAttributes(attribute.Int64("seller.id", sellerID)))
	defer span.End()

	var products []*entity.Product
	count, err := r.reader.NewSelect().Model(&products).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return products, int64(count), nil
}

// Search matches products by name, description, or tag substring.
func (r *Repository) Search(ctx context.Context, key string, limit, offset int) ([]*entity.Product, int64, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Search")
	defer span.End()

	pattern := "%" + key + "%"
	var products []*entity.Product
	count, err := r.reader.NewSelect().Model(&products).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("name LIKE ?", pattern).
				WhereOr("description LIKE ?", pattern).
				WhereOr("tags LIKE ?", pattern)
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return products, int64(count), nil
}

// Deduct applies one batch of stock deductions: quantity -= n and
// soldCount += n per delta. Each update is conditional on sufficient stock
// (quantity >= n) so concurrent placements can never jointly oversell; the
// first product that cannot cover its delta aborts the batch with
// InsufficientStockError and the enclosing transaction rolls back.
func (r *Repository) Deduct(ctx context.Context, idb bun.IDB, deltas []entity.StockDelta) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Deduct", trace.WithAttributes(attribute.Int("deltas", len(deltas))))
	defer span.End()

	now := time.Now().UTC()
	for _, d := range deltas {
		res, err := idb.NewUpdate().Model((*entity.Product)(nil)).
			Set("quantity = quantity - ?", d.Quantity).
			Set("sold_count = sold_count + ?", d.Quantity).
			Set("updated_at = ?", now).
			Where("id = ? AND quantity >= ?", d.ProductID, d.Quantity).
			Exec(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			span.SetStatus(codes.Error, "insufficient stock")
			return &InsufficientStockError{ProductID: d.ProductID}
		}
	}
	return nil
}

// Restock reverses a prior deduction: quantity += n and soldCount -= n per
// delta, equal magnitude and opposite sign to what Deduct applied.
func (r *Repository) Restock(ctx context.Context, idb bun.IDB, deltas []entity.StockDelta) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Restock", trace.WithAttributes(attribute.Int("deltas", len(deltas))))
	defer span.End()

	now := time.Now().UTC()
	for _, d := range deltas {
		res, err := idb.NewUpdate().Model((*entity.Product)(nil)).
			Set("quantity = quantity + ?", d.Quantity).
			Set("sold_count = sold_count - ?", d.Quantity).
			Set("updated_at = ?", now).
			Where("id = ?", d.ProductID).
			Exec(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			// The product was deleted while its order was open; there is
			// no row to restore into.
			span.AddEvent("restock skipped: product row gone",
				trace.WithAttributes(attribute.Int64("product.id", d.ProductID)))
		}
	}
	return nil
}
