package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/notifier"
	orderrepo "github.com/Additional-Code/tradehub/internal/repository/order"
	productrepo "github.com/Additional-Code/tradehub/internal/repository/product"
	userrepo "github.com/Additional-Code/tradehub/internal/repository/user"
	svc "github.com/Additional-Code/tradehub/internal/service/order"
	"github.com/Additional-Code/tradehub/internal/testutil"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

type OrderServiceSuite struct {
	suite.Suite

	ctx      context.Context
	conns    *database.Connections
	users    *userrepo.Repository
	products *productrepo.Repository
	orders   *orderrepo.Repository
	service  *svc.Service

	buyer  *entity.User
	seller *entity.User
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.conns = testutil.NewDB(s.T())
	s.users = userrepo.NewRepository(s.conns)
	s.products = productrepo.NewRepository(s.conns)
	s.orders = orderrepo.NewRepository(s.conns)

	logger := zap.NewNop()
	cfg := config.Config{}
	dispatcher := notifier.NewDispatcher(notifier.NewSender(cfg, logger), logger)

	s.service = svc.NewService(svc.Params{
		Orders:    s.orders,
		Products:  s.products,
		Users:     s.users,
		Notifier:  dispatcher,
		Publisher: nil,
		Config:    cfg,
		Logger:    logger,
	})

	s.buyer = s.createUser("buyer@example.com")
	s.seller = s.createUser("seller@example.com")
}

func (s *OrderServiceSuite) createUser(email string) *entity.User {
	user := &entity.User{
		Name:       email,
		Email:      email,
		IsVerified: true,
		CreatedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.users.Create(s.ctx, user))
	return user
}

func (s *OrderServiceSuite) createProduct(sellerID, quantity, priceCents int64) *entity.Product {
	product := &entity.Product{
		Name:       "widget",
		PriceCents: priceCents,
		Quantity:   quantity,
		Images:     []string{"https://cdn.example.com/widget.jpg"},
		SellerID:   sellerID,
		CreatedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.products.Create(s.ctx, product))
	return product
}

func (s *OrderServiceSuite) reload(productID int64) *entity.Product {
	product, err := s.products.GetByID(s.ctx, productID)
	s.Require().NoError(err)
	return product
}

func (s *OrderServiceSuite) place(items ...dto.OrderItemRequest) (*entity.Order, error) {
	return s.service.Place(s.ctx, s.buyer.ID, dto.PlaceOrderRequest{
		Items:           items,
		ShippingAddress: "1 Main St",
	})
}

func (s *OrderServiceSuite) TestPlace_Success() {
	p1 := s.createProduct(s.seller.ID, 10, 1500)
	p2 := s.createProduct(s.seller.ID, 5, 200)

	order, err := s.place(
		dto.OrderItemRequest{ProductID: p1.ID, Quantity: 3},
		dto.OrderItemRequest{ProductID: p2.ID, Quantity: 2},
	)
	s.Require().NoError(err)

	s.Equal(entity.OrderPending, order.Status)
	s.Equal(entity.PaymentPending, order.PaymentStatus)
	s.Equal(s.seller.ID, order.SellerID)
	s.Equal(int64(3*1500+2*200), order.TotalCents)
	s.Len(order.Items, 2)
	s.Equal(int64(1500), order.Items[0].UnitPriceCents)

	got := s.reload(p1.ID)
	s.Equal(int64(7), got.Quantity)
	s.Equal(int64(3), got.SoldCount)

	got = s.reload(p2.ID)
	s.Equal(int64(3), got.Quantity)
	s.Equal(int64(2), got.SoldCount)
}

func (s *OrderServiceSuite) TestPlace_EmptyItems() {
	_, err := s.place()
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func (s *OrderServiceSuite) TestPlace_UnknownProduct() {
	_, err := s.place(dto.OrderItemRequest{ProductID: 404, Quantity: 1})
	s.Require().Error(err)
	s.Equal(errorbank.KindNotFound, errorbank.From(err).Kind())
}

func (s *OrderServiceSuite) TestPlace_InsufficientStock_NoPartialDeduction() {
	plenty := s.createProduct(s.seller.ID, 10, 100)
	scarce := s.createProduct(s.seller.ID, 1, 100)

	_, err := s.place(
		dto.OrderItemRequest{ProductID: plenty.ID, Quantity: 5},
		dto.OrderItemRequest{ProductID: scarce.ID, Quantity: 2},
	)
	s.Require().Error(err)
	s.True(errorbank.IsInsufficientStock(err))

	got := s.reload(plenty.ID)
	s.Equal(int64(10), got.Quantity)
	s.Equal(int64(0), got.SoldCount)

	got = s.reload(scarce.ID)
	s.Equal(int64(1), got.Quantity)
}

func (s *OrderServiceSuite) TestPlace_MultiSellerRejected() {
	other := s.createUser("other-seller@example.com")
	p1 := s.createProduct(s.seller.ID, 10, 100)
	p2 := s.createProduct(other.ID, 10, 100)

	_, err := s.place(
		dto.OrderItemRequest{ProductID: p1.ID, Quantity: 1},
		dto.OrderItemRequest{ProductID: p2.ID, Quantity: 1},
	)
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())

	s.Equal(int64(10), s.reload(p1.ID).Quantity)
	s.Equal(int64(10), s.reload(p2.ID).Quantity)
}

func (s *OrderServiceSuite) TestPlace_ConcurrentPlacementsNeverOversell() {
	product := s.createProduct(s.seller.ID, 5, 100)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 3})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			s.True(errorbank.IsInsufficientStock(err))
			failed++
		}
	}
	s.Equal(1, failed, "exactly one of the two placements must lose")

	got := s.reload(product.ID)
	s.Equal(int64(2), got.Quantity)
	s.Equal(int64(3), got.SoldCount)
}

func (s *OrderServiceSuite) TestCancel_RestoresStockExactlyOnce() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 4})
	s.Require().NoError(err)
	s.Equal(int64(6), s.reload(product.ID).Quantity)

	buyer := auth.Actor{ID: s.buyer.ID}
	cancelled, err := s.service.Cancel(s.ctx, buyer, order.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderCancelled, cancelled.Status)

	got := s.reload(product.ID)
	s.Equal(int64(10), got.Quantity)
	s.Equal(int64(0), got.SoldCount)

	_, err = s.service.Cancel(s.ctx, buyer, order.ID)
	s.Require().Error(err)
	s.Equal(errorbank.KindConflict, errorbank.From(err).Kind())

	got = s.reload(product.ID)
	s.Equal(int64(10), got.Quantity)
	s.Equal(int64(0), got.SoldCount)
}

func (s *OrderServiceSuite) TestCancel_StrangerForbidden() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	stranger := s.createUser("stranger@example.com")
	_, err = s.service.Cancel(s.ctx, auth.Actor{ID: stranger.ID}, order.ID)
	s.Require().Error(err)
	s.Equal(errorbank.KindForbidden, errorbank.From(err).Kind())
}

func (s *OrderServiceSuite) TestCancel_ShippedRejectedForParticipant() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	s.Require().NoError(s.orders.SetStatus(s.ctx, order.ID, entity.OrderShipped))

	_, err = s.service.Cancel(s.ctx, auth.Actor{ID: s.buyer.ID}, order.ID)
	s.Require().Error(err)
	s.Equal(errorbank.KindConflict, errorbank.From(err).Kind())
	s.Equal(int64(9), s.reload(product.ID).Quantity)
}

func (s *OrderServiceSuite) TestAdminCancel_ShippedAllowed() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 2})
	s.Require().NoError(err)

	s.Require().NoError(s.orders.SetStatus(s.ctx, order.ID, entity.OrderShipped))

	cancelled, err := s.service.AdminCancel(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderCancelled, cancelled.Status)
	s.Equal(int64(10), s.reload(product.ID).Quantity)
}

func (s *OrderServiceSuite) TestMarkProcessing() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.service.MarkProcessing(s.ctx, auth.Actor{ID: s.buyer.ID}, order.ID)
	s.Require().Error(err)
	s.Equal(errorbank.KindForbidden, errorbank.From(err).Kind())

	updated, err := s.service.MarkProcessing(s.ctx, auth.Actor{ID: s.seller.ID}, order.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderProcessing, updated.Status)

	_, err = s.service.MarkProcessing(s.ctx, auth.Actor{ID: s.seller.ID}, order.ID)
	s.Require().Error(err)
	s.Equal(errorbank.KindConflict, errorbank.From(err).Kind())
}

func (s *OrderServiceSuite) TestSetStatus_ExcludesCancelled() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.service.SetStatus(s.ctx, order.ID, "cancelled")
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())

	_, err = s.service.SetStatus(s.ctx, order.ID, "bogus")
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())

	updated, err := s.service.SetStatus(s.ctx, order.ID, "shipped")
	s.Require().NoError(err)
	s.Equal(entity.OrderShipped, updated.Status)
}

func (s *OrderServiceSuite) TestSetPaymentStatus() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.service.SetPaymentStatus(s.ctx, order.ID, "refunded")
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())

	updated, err := s.service.SetPaymentStatus(s.ctx, order.ID, "completed")
	s.Require().NoError(err)
	s.Equal(entity.PaymentCompleted, updated.PaymentStatus)
}

func (s *OrderServiceSuite) TestCancelStale() {
	product := s.createProduct(s.seller.ID, 10, 100)
	stale, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 2})
	s.Require().NoError(err)
	fresh, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	old := time.Now().UTC().Add(-96 * time.Hour)
	_, err = s.conns.Writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("created_at = ?", old).
		Where("id = ?", stale.ID).
		Exec(s.ctx)
	s.Require().NoError(err)

	cancelled, err := s.service.CancelStale(s.ctx, time.Now().UTC().Add(-72*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, cancelled)

	got, err := s.orders.GetByID(s.ctx, stale.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderCancelled, got.Status)

	got, err = s.orders.GetByID(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderPending, got.Status)

	// Only the stale order's deduction is restored.
	s.Equal(int64(9), s.reload(product.ID).Quantity)
	s.Equal(int64(1), s.reload(product.ID).SoldCount)
}

func (s *OrderServiceSuite) TestRemindProcessing() {
	product := s.createProduct(s.seller.ID, 10, 100)
	order, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	// Still pending, so nothing to remind yet.
	reminded, err := s.service.RemindProcessing(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, reminded)

	_, err = s.service.MarkProcessing(s.ctx, auth.Actor{ID: s.seller.ID}, order.ID)
	s.Require().NoError(err)

	reminded, err = s.service.RemindProcessing(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, reminded)
}

func (s *OrderServiceSuite) TestListForSeller_PriorityOrder() {
	product := s.createProduct(s.seller.ID, 100, 100)

	first, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)
	second, err := s.place(dto.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	s.Require().NoError(err)

	s.Require().NoError(s.orders.SetStatus(s.ctx, first.ID, entity.OrderCompleted))

	orders, meta, err := s.service.ListForSeller(s.ctx, s.seller.ID, dto.PageRequest{})
	s.Require().NoError(err)
	s.Equal(int64(2), meta.Total)
	s.Require().Len(orders, 2)
	s.Equal(second.ID, orders[0].ID)
	s.Equal(first.ID, orders[1].ID)
}
