package product_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
	productrepo "github.com/Additional-Code/tradehub/internal/repository/product"
	"github.com/Additional-Code/tradehub/internal/testutil"
)

func newRepo(t *testing.T) (*productrepo.Repository, *database.Connections) {
	conns := testutil.NewDB(t)
	return productrepo.NewRepository(conns), conns
}

func seedProduct(t *testing.T, repo *productrepo.Repository, quantity int64) *entity.Product {
	t.Helper()
	product := &entity.Product{
		Name:       "widget",
		PriceCents: 100,
		Quantity:   quantity,
		SellerID:   1,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), product))
	return product
}

func TestDeductMovesQuantityAndSoldCountInLockstep(t *testing.T) {
	ctx := context.Background()
	repo, conns := newRepo(t)
	product := seedProduct(t, repo, 10)

	err := repo.Deduct(ctx, conns.Writer, []entity.StockDelta{{ProductID: product.ID, Quantity: 4}})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Quantity)
	assert.Equal(t, int64(4), got.SoldCount)
}

func TestDeductRejectsInsufficientStock(t *testing.T) {
	ctx := context.Background()
	repo, conns := newRepo(t)
	product := seedProduct(t, repo, 3)

	err := repo.Deduct(ctx, conns.Writer, []entity.StockDelta{{ProductID: product.ID, Quantity: 4}})
	require.Error(t, err)

	var stockErr *productrepo.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, product.ID, stockErr.ProductID)

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Quantity)
	assert.Equal(t, int64(0), got.SoldCount)
}

func TestDeductExactStockDrainsToZero(t *testing.T) {
	ctx := context.Background()
	repo, conns := newRepo(t)
	product := seedProduct(t, repo, 5)

	err := repo.Deduct(ctx, conns.Writer, []entity.StockDelta{{ProductID: product.ID, Quantity: 5}})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Quantity)

	// The next unit cannot be covered.
	err = repo.Deduct(ctx, conns.Writer, []entity.StockDelta{{ProductID: product.ID, Quantity: 1}})
	require.Error(t, err)
}

func TestRestockReversesDeduction(t *testing.T) {
	ctx := context.Background()
	repo, conns := newRepo(t)
	product := seedProduct(t, repo, 10)

	deltas := []entity.StockDelta{{ProductID: product.ID, Quantity: 7}}
	require.NoError(t, repo.Deduct(ctx, conns.Writer, deltas))
	require.NoError(t, repo.Restock(ctx, conns.Writer, deltas))

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Quantity)
	assert.Equal(t, int64(0), got.SoldCount)
}

func TestRestockDeletedProductIsNoop(t *testing.T) {
	ctx := context.Background()
	repo, conns := newRepo(t)
	survivor := seedProduct(t, repo, 10)
	doomed := seedProduct(t, repo, 10)

	deltas := []entity.StockDelta{
		{ProductID: survivor.ID, Quantity: 2},
		{ProductID: doomed.ID, Quantity: 2},
	}
	require.NoError(t, repo.Deduct(ctx, conns.Writer, deltas))
	require.NoError(t, repo.Delete(ctx, doomed.ID))

	// The deleted product's delta has no row to restore into; the rest of
	// the batch still goes through.
	require.NoError(t, repo.Restock(ctx, conns.Writer, deltas))

	got, err := repo.GetByID(ctx, survivor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Quantity)
	assert.Equal(t, int64(0), got.SoldCount)

	_, err = repo.GetByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, productrepo.ErrNotFound)
}

func TestDeductBatchFailsAtomicallyInTx(t *testing.T) {
	ctx := context.Background()
	repo, conns := newRepo(t)
	plenty := seedProduct(t, repo, 10)
	scarce := seedProduct(t, repo, 1)

	err := conns.Writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Deduct(ctx, tx, []entity.StockDelta{
			{ProductID: plenty.ID, Quantity: 5},
			{ProductID: scarce.ID, Quantity: 2},
		})
	})
	require.Error(t, err)

	got, err := repo.GetByID(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Quantity, "rolled-back batch must not leave partial deductions")
}
