package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/messaging"
	"github.com/Additional-Code/tradehub/internal/notifier"
	orderrepo "github.com/Additional-Code/tradehub/internal/repository/order"
	productrepo "github.com/Additional-Code/tradehub/internal/repository/product"
	userrepo "github.com/Additional-Code/tradehub/internal/repository/user"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/order")

// Service owns order state transitions and keeps inventory consistent with
// order state. Every transition path (buyer, seller, admin, sweeper) runs
// through the same cancellation effect.
type Service struct {
	orders    *orderrepo.Repository
	products  *productrepo.Repository
	users     *userrepo.Repository
	notifier  *notifier.Dispatcher
	publisher messaging.Client
	logger    *zap.Logger
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *orderrepo.Repository
	Products  *productrepo.Repository
	Users     *userrepo.Repository
	Notifier  *notifier.Dispatcher
	Publisher messaging.Client
	Config    config.Config
	Logger    *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		products:  p.Products,
		users:     p.Users,
		notifier:  p.Notifier,
		publisher: p.Publisher,
		logger:    p.Logger,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
		},
	}
}

// Place creates an order for the buyer: validates every requested item,
// deducts stock and inserts the order in one transaction, then fires the
// confirmation notification best-effort.
func (s *Service) Place(ctx context.Context, buyerID int64, req dto.PlaceOrderRequest) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Place", trace.WithAttributes(attribute.Int64("buyer.id", buyerID)))
	defer span.End()

	if len(req.Items) == 0 {
		return nil, errorbank.BadRequest("no products provided for order")
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, errorbank.BadRequest(fmt.Sprintf("invalid quantity for product %d", item.ProductID))
		}
		ids = append(ids, item.ProductID)
	}

	catalog, err := s.products.GetManyByID(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load products", errorbank.WithCause(err))
	}

	var (
		sellerID int64
		total    int64
		items    = make([]*entity.OrderItem, 0, len(req.Items))
		deltas   = make([]entity.StockDelta, 0, len(req.Items))
	)
	for _, item := range req.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, errorbank.NotFound(fmt.Sprintf("product with ID %d not found", item.ProductID))
		}
		if product.Quantity < item.Quantity {
			return nil, errorbank.InsufficientStock(product.Name)
		}
		if sellerID == 0 {
			sellerID = product.SellerID
		} else if product.SellerID != sellerID {
			// Orders span exactly one seller; carts mixing sellers must be
			// split client-side.
			return nil, errorbank.BadRequest("order may only contain products from a single seller")
		}
		total += product.PriceCents * item.Quantity
		items = append(items, &entity.OrderItem{
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
		})
		deltas = append(deltas, entity.StockDelta{ProductID: product.ID, Quantity: item.Quantity})
	}

	now := time.Now().UTC()
	order := &entity.Order{
		BuyerID:         buyerID,
		SellerID:        sellerID,
		TotalCents:      total,
		ShippingAddress: req.ShippingAddress,
		Status:          entity.OrderPending,
		PaymentStatus:   entity.PaymentPending,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := s.products.Deduct(ctx, tx, deltas); err != nil {
			return err
		}
		return s.orders.Insert(ctx, tx, order)
	})
	if err != nil {
		var stockErr *productrepo.InsufficientStockError
		if errors.As(err, &stockErr) {
			name := fmt.Sprintf("%d", stockErr.ProductID)
			if product, ok := catalog[stockErr.ProductID]; ok {
				name = product.Name
			}
			return nil, errorbank.InsufficientStock(name)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "placement failed")
		return nil, errorbank.Internal("failed to place order", errorbank.WithCause(err))
	}

	s.notifyBuyer(ctx, order, "Order Confirmation",
		fmt.Sprintf("Your order has been placed successfully. Your order ID is: %d", order.ID))
	s.publish(ctx, EventOrderPlaced, order)

	return order, nil
}

// MarkProcessing moves a pending order to processing. Seller only.
func (s *Service) MarkProcessing(ctx context.Context, actor auth.Actor, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.MarkProcessing", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.ID {
		return nil, errorbank.Forbidden("you are not authorized to process this order")
	}
	if order.Status != entity.OrderPending {
		return nil, errorbank.Conflict("only pending orders can be marked as processing")
	}

	ok, err := s.orders.Transition(ctx, s.orders.Writer(), orderID, entity.OrderProcessing, []entity.OrderStatus{entity.OrderPending})
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
	if !ok {
		return nil, errorbank.Conflict("only pending orders can be marked as processing")
	}

	return s.get(ctx, orderID)
}

// Cancel cancels an order on behalf of its buyer or seller. Shipped and
// terminal orders are rejected; the inventory the order deducted is
// restored exactly once.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.ID && order.BuyerID != actor.ID {
		return nil, errorbank.Forbidden("you are not authorized to cancel this order")
	}

	if err := s.cancelWithRestore(ctx, order, entity.CancellableByParticipant, "Your order with ID %d has been cancelled."); err != nil {
		return nil, err
	}
	return s.get(ctx, orderID)
}

// AdminCancel cancels any non-terminal order without an ownership check.
// Unlike participant cancellation it may also pull back shipped orders.
func (s *Service) AdminCancel(ctx context.Context, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AdminCancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.cancelWithRestore(ctx, order, entity.CancellableByAdmin, "Your order with ID %d has been cancelled by the admin."); err != nil {
		return nil, err
	}
	return s.get(ctx, orderID)
}

// cancelWithRestore is the single cancellation effect shared by every call
// path. The status flip is guarded by allowedFrom inside the same
// transaction as the inventory restoration, so of two concurrent cancels
// exactly one restores stock and the other observes a conflict.
func (s *Service) cancelWithRestore(ctx context.Context, order *entity.Order, allowedFrom []entity.OrderStatus, mailBody string) error {
	err := s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		ok, err := s.orders.Transition(ctx, tx, order.ID, entity.OrderCancelled, allowedFrom)
		if err != nil {
			return err
		}
		if !ok {
			return errorbank.Conflict("this order cannot be cancelled")
		}
		return s.products.Restock(ctx, tx, order.RestoreDeltas())
	})
	if err != nil {
		if errorbank.From(err).Kind() == errorbank.KindConflict {
			return err
		}
		return errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
	}

	s.notifyBuyer(ctx, order, "Order Cancellation", fmt.Sprintf(mailBody, order.ID))
	s.publish(ctx, EventOrderCancelled, order)
	return nil
}

// SetStatus is the admin flat status override. Cancellation is excluded
// from the accepted domain so inventory restoration cannot be bypassed.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer span.End()

	target := entity.OrderStatus(status)
	allowed := false
	for _, candidate := range entity.AdminOverrideStatuses {
		if target == candidate {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, errorbank.BadRequest("invalid status")
	}

	if err := s.orders.SetStatus(ctx, orderID, target); err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
	}
	return s.get(ctx, orderID)
}

// SetPaymentStatus is the admin payment override.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID int64, status string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetPaymentStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.payment_status", status),
	))
	defer span.End()

	target := entity.PaymentStatus(status)
	if !target.Valid() {
		return nil, errorbank.BadRequest("invalid status")
	}

	if err := s.orders.SetPaymentStatus(ctx, orderID, target); err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update payment status", errorbank.WithCause(err))
	}
	return s.get(ctx, orderID)
}

// ListForSeller returns the seller's orders, status-priority sorted.
func (s *Service) ListForSeller(ctx context.Context, sellerID int64, page dto.PageRequest) ([]*entity.Order, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForSeller", trace.WithAttributes(attribute.Int64("seller.id", sellerID)))
	defer span.End()

	page = page.Normalize()
	orders, total, err := s.orders.ListBySeller(ctx, sellerID, page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, dto.PageMeta{}, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}
	return orders, dto.NewPageMeta(page, total), nil
}

// ListForBuyer returns the buyer's orders newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID int64, page dto.PageRequest) ([]*entity.Order, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForBuyer", trace.WithAttributes(attribute.Int64("buyer.id", buyerID)))
	defer span.End()

	page = page.Normalize()
	orders, total, err := s.orders.ListByBuyer(ctx, buyerID, page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, dto.PageMeta{}, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}
	return orders, dto.NewPageMeta(page, total), nil
}

// ListAll returns every order newest first. Admin listing.
func (s *Service) ListAll(ctx context.Context, page dto.PageRequest) ([]*entity.Order, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListAll")
	defer span.End()

	page = page.Normalize()
	orders, total, err := s.orders.ListAll(ctx, page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, dto.PageMeta{}, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}
	return orders, dto.NewPageMeta(page, total), nil
}

// Search returns orders matching an id key. Admin search.
func (s *Service) Search(ctx context.Context, id int64) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Search")
	defer span.End()

	orders, err := s.orders.Search(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to search orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// CancelStale cancels every pending order created at or before the cutoff
// through the shared cancellation effect. A failure on one order does not
// abort the rest; the number of cancelled orders is returned.
func (s *Service) CancelStale(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CancelStale")
	defer span.End()

	stale, err := s.orders.ListStalePending(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	cancelled := 0
	for _, order := range stale {
		if err := s.cancelWithRestore(ctx, order, entity.CancellableByParticipant, "Your order with ID %d has been cancelled due to inactivity."); err != nil {
			s.logger.Warn("stale order cancellation failed", zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// RemindProcessing mails every processing order's seller a drop-off
// reminder. No order state changes.
func (s *Service) RemindProcessing(ctx context.Context) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RemindProcessing")
	defer span.End()

	processing, err := s.orders.ListByStatus(ctx, entity.OrderProcessing)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	reminded := 0
	for _, order := range processing {
		seller, err := s.users.GetByID(ctx, order.SellerID)
		if err != nil {
			s.logger.Warn("reminder skipped; seller lookup failed", zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		body := fmt.Sprintf("You need to drop off the product for order ID %d.", order.ID)
		if err := s.notifier.DispatchSync(ctx, seller.Email, "Product Drop-off Reminder", body); err != nil {
			s.logger.Warn("reminder delivery failed", zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		reminded++
	}
	return reminded, nil
}

func (s *Service) get(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) notifyBuyer(ctx context.Context, order *entity.Order, subject, body string) {
	buyer, err := s.users.GetByID(ctx, order.BuyerID)
	if err != nil {
		s.logger.Warn("buyer notification skipped; lookup failed", zap.Int64("order_id", order.ID), zap.Error(err))
		return
	}
	s.notifier.Dispatch(ctx, buyer.Email, subject, body)
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	status := entity.OrderCancelled
	if eventType == EventOrderPlaced {
		status = entity.OrderPending
	}
	event := Event{
		Type:       eventType,
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		TotalCents: order.TotalCents,
		Status:     string(status),
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Error(err))
	}
}
