package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tradehub/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders and their items.
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

// Writer exposes the write handle for single-statement guarded updates
// that do not need a surrounding transaction.
func (r *Repository) Writer() bun.IDB {
	return r.writer
}

// RunInTx executes fn inside a write transaction. Order transitions and
// their inventory effects always share one transaction.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.writer.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// Insert persists an order and its line items within the given handle.
func (r *Repository) Insert(ctx context.Context, idb bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Insert", trace.WithAttributes(attribute.Int64("order.buyer_id", order.BuyerID)))
	defer span.End()

	if _, err := idb.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert order failed")
		return err
	}
	for _, item := range order.Items {
		item.OrderID = order.ID
	}
	if len(order.Items) > 0 {
		if _, err := idb.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert items failed")
			return err
		}
	}
	return nil
}

// GetByID fetches an order with its items.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Items").
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// Transition flips the order status, guarded by the set of states the
// transition is valid from. Returns false when the guard did not match, so
// a concurrent competing transition wins at most once.
func (r *Repository) Transition(ctx context.Context, idb bun.IDB, id int64, to entity.OrderStatus, from []entity.OrderStatus) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.to_status", string(to)),
	))
	defer span.End()

	res, err := idb.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ? AND status IN (?)", id, bun.In(from)).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// SetStatus overwrites the order status without a transition guard. Used
// only by the admin flat override after domain validation.
func (r *Repository) SetStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetStatus", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaymentStatus overwrites the independently tracked payment status.
func (r *Repository) SetPaymentStatus(ctx context.Context, id int64, status entity.PaymentStatus) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetPaymentStatus", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("payment_status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBySeller returns a seller's orders sorted by status priority
// (pending, processing, shipped, completed, cancelled) and then newest
// first. The priority sort is applied before pagination.
func (r *Repository) ListBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]*entity.Order, int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListBySeller", trace.WithAttributes(attribute.Int64("seller.id", sellerID)))
	defer span.End()

	var orders []*entity.Order
	count, err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.seller_id = ?", sellerID).
		OrderExpr("CASE o.status WHEN 'pending' THEN 0 WHEN 'processing' THEN 1 WHEN 'shipped' THEN 2 WHEN 'completed' THEN 3 ELSE 4 END").
		OrderExpr("o.created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return orders, int64(count), nil
}

// ListByBuyer returns a buyer's orders newest first with the total count.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]*entity.Order, int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByBuyer", trace.WithAttributes(attribute.Int64("buyer.id", buyerID)))
	defer span.End()

	var orders []*entity.Order
	count, err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.buyer_id = ?", buyerID).
		OrderExpr("o.created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return orders, int64(count), nil
}

// ListAll returns all orders newest first with the total count.
func (r *Repository) ListAll(ctx context.Context, limit, offset int) ([]*entity.Order, int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListAll")
	defer span.End()

	var orders []*entity.Order
	count, err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		OrderExpr("o.created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return orders, int64(count), nil
}

// ListByStatus returns every order currently in the given status.
func (r *Repository) ListByStatus(ctx context.Context, status entity.OrderStatus) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByStatus", trace.WithAttributes(attribute.String("order.status", string(status))))
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.status = ?", status).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListStalePending returns pending orders created at or before the cutoff.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListStalePending")
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.status = ? AND o.created_at <= ?", entity.OrderPending, cutoff).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Search matches orders by exact id.
func (r *Repository) Search(ctx context.Context, id int64) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Search", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.id = ?", id).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}
