package product_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/cache"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/dto"
	productrepo "github.com/Additional-Code/tradehub/internal/repository/product"
	svc "github.com/Additional-Code/tradehub/internal/service/product"
	"github.com/Additional-Code/tradehub/internal/storage"
	"github.com/Additional-Code/tradehub/internal/testutil"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

type ProductServiceSuite struct {
	suite.Suite

	ctx     context.Context
	service *svc.Service
}

func TestProductServiceSuite(t *testing.T) {
	suite.Run(t, new(ProductServiceSuite))
}

func (s *ProductServiceSuite) SetupTest() {
	s.ctx = context.Background()
	conns := testutil.NewDB(s.T())

	logger := zap.NewNop()
	cfg := config.Config{Cache: config.Cache{Driver: "noop"}}

	store, err := cache.NewStore(nil, cfg, logger)
	s.Require().NoError(err)
	blobs, err := storage.NewStore(nil, cfg, logger)
	s.Require().NoError(err)

	s.service = svc.NewService(svc.Params{
		Products: productrepo.NewRepository(conns),
		Cache:    store,
		Storage:  blobs,
		Config:   cfg,
		Logger:   logger,
	})
}

func (s *ProductServiceSuite) create(sellerID int64, name string) int64 {
	product, err := s.service.Create(s.ctx, sellerID, dto.CreateProductRequest{
		Name:        name,
		Description: "a fine item",
		PriceCents:  1299,
		Quantity:    10,
		Tags:        []string{"gadget"},
	}, []svc.ImageUpload{{
		Filename:    "item.jpg",
		ContentType: "image/jpeg",
		Reader:      strings.NewReader("fake-bytes"),
		Size:        10,
	}})
	s.Require().NoError(err)
	return product.ID
}

func (s *ProductServiceSuite) TestCreate_RequiresImage() {
	_, err := s.service.Create(s.ctx, 1, dto.CreateProductRequest{
		Name:       "imageless",
		PriceCents: 100,
	}, nil)
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func (s *ProductServiceSuite) TestCreate_StoresImageURL() {
	id := s.create(1, "keyboard")

	product, err := s.service.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(product.Images, 1)
	s.NotEmpty(product.Images[0])
	s.Equal(int64(1), product.SellerID)
}

func (s *ProductServiceSuite) TestGet_NotFound() {
	_, err := s.service.Get(s.ctx, 404)
	s.Require().Error(err)
	s.Equal(errorbank.KindNotFound, errorbank.From(err).Kind())
}

func (s *ProductServiceSuite) TestUpdate_OwnerOnly() {
	id := s.create(1, "keyboard")

	name := "renamed"
	_, err := s.service.Update(s.ctx, auth.Actor{ID: 2}, id, dto.UpdateProductRequest{Name: &name})
	s.Require().Error(err)
	s.Equal(errorbank.KindForbidden, errorbank.From(err).Kind())

	updated, err := s.service.Update(s.ctx, auth.Actor{ID: 1}, id, dto.UpdateProductRequest{Name: &name})
	s.Require().NoError(err)
	s.Equal("renamed", updated.Name)
}

func (s *ProductServiceSuite) TestDelete_OwnerOrAdmin() {
	id := s.create(1, "keyboard")

	err := s.service.Delete(s.ctx, auth.Actor{ID: 2}, id)
	s.Require().Error(err)
	s.Equal(errorbank.KindForbidden, errorbank.From(err).Kind())

	err = s.service.Delete(s.ctx, auth.Actor{ID: 2, Admin: true}, id)
	s.Require().NoError(err)

	_, err = s.service.Get(s.ctx, id)
	s.Require().Error(err)
	s.Equal(errorbank.KindNotFound, errorbank.From(err).Kind())
}

func (s *ProductServiceSuite) TestSearch_MatchesNameDescriptionTags() {
	s.create(1, "mechanical keyboard")
	s.create(1, "mouse")

	products, meta, err := s.service.Search(s.ctx, "keyboard", dto.PageRequest{})
	s.Require().NoError(err)
	s.Equal(int64(1), meta.Total)
	s.Require().Len(products, 1)
	s.Equal("mechanical keyboard", products[0].Name)

	// Tag substrings match too.
	products, _, err = s.service.Search(s.ctx, "gadget", dto.PageRequest{})
	s.Require().NoError(err)
	s.Len(products, 2)
}

func (s *ProductServiceSuite) TestList_Paginates() {
	for i := 0; i < 12; i++ {
		s.create(1, "item")
	}

	products, meta, err := s.service.List(s.ctx, dto.PageRequest{Page: 2, Size: 10})
	s.Require().NoError(err)
	s.Len(products, 2)
	s.Equal(int64(12), meta.Total)
	s.Equal(int64(2), meta.TotalPages)
}
