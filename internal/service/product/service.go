package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/cache"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	productrepo "github.com/Additional-Code/tradehub/internal/repository/product"
	"github.com/Additional-Code/tradehub/internal/storage"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/product")

// Cache key prefixes. Reads populate under these; every mutation drops the
// entity key and the list/search families.
const (
	keyByID   = "products:id:"
	keyList   = "products:list:"
	keySeller = "products:seller:"
	keySearch = "products:search:"
)

// ImageUpload is one multipart image stream handed down from the transport.
type ImageUpload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// Service implements catalog management with blob-backed images and an
// advisory read-through cache.
type Service struct {
	products *productrepo.Repository
	cache    cache.Store
	storage  storage.Store
	logger   *zap.Logger
	cacheTTL time.Duration
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Products *productrepo.Repository
	Cache    cache.Store
	Storage  storage.Store
	Config   config.Config
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		products: p.Products,
		cache:    p.Cache,
		storage:  p.Storage,
		logger:   p.Logger,
		cacheTTL: p.Config.Cache.DefaultTTL,
	}
}

// Create uploads the product images to blob storage and persists the
// product. At least one image is required; an upload failure fails the
// whole request because a catalog entry without images is not sellable.
func (s *Service) Create(ctx context.Context, sellerID int64, req dto.CreateProductRequest, images []ImageUpload) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Create", trace.WithAttributes(attribute.Int64("seller.id", sellerID)))
	defer span.End()

	if req.Name == "" || req.PriceCents <= 0 {
		return nil, errorbank.BadRequest("name and a positive price are required")
	}
	if req.Quantity < 0 {
		return nil, errorbank.BadRequest("quantity must not be negative")
	}
	if len(images) == 0 {
		return nil, errorbank.BadRequest("at least one product image is required")
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := s.storage.Upload(ctx, img.Filename, img.ContentType, img.Reader, img.Size)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "image upload failed")
			return nil, errorbank.Internal("failed to upload product image", errorbank.WithCause(err))
		}
		urls = append(urls, url)
	}

	now := time.Now().UTC()
	product := &entity.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Images:      urls,
		SellerID:    sellerID,
		Tags:        req.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to create product", errorbank.WithCause(err))
	}

	s.invalidate(ctx, product.ID)
	return product, nil
}

// Get returns one product, read-through cached.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Get", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	key := fmt.Sprintf("%s%d", keyByID, id)
	var cached entity.Product
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}

	s.writeCache(ctx, key, product)
	return product, nil
}

// pagePayload is the cached shape of a paginated listing.
type pagePayload struct {
	Products []*entity.Product `json:"products"`
	Total    int64             `json:"total"`
}

// List returns a product page, read-through cached.
func (s *Service) List(ctx context.Context, page dto.PageRequest) ([]*entity.Product, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.List")
	defer span.End()

	page = page.Normalize()
	key := fmt.Sprintf("%s%d:%d", keyList, page.Page, page.Size)
	return s.pagedList(ctx, key, page, func(ctx context.Context) ([]*entity.Product, int64, error) {
		return s.products.List(ctx, page.Size, page.Offset())
	})
}

// ListBySeller returns a seller's product page, read-through cached.
func (s *Service) ListBySeller(ctx context.Context, sellerID int64, page dto.PageRequest) ([]*entity.Product, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.ListBySeller", trace.WithAttributes(attribute.Int64("seller.id", sellerID)))
	defer span.End()

	page = page.Normalize()
	key := fmt.Sprintf("%s%d:%d:%d", keySeller, sellerID, page.Page, page.Size)
	return s.pagedList(ctx, key, page, func(ctx context.Context) ([]*entity.Product, int64, error) {
		return s.products.ListBySeller(ctx, sellerID, page.Size, page.Offset())
	})
}

// Search returns products matching a key over name, description, and tags.
func (s *Service) Search(ctx context.Context, searchKey string, page dto.PageRequest) ([]*entity.Product, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Search")
	defer span.End()

	if searchKey == "" {
		return nil, dto.PageMeta{}, errorbank.BadRequest("search key is required")
	}
	page = page.Normalize()
	key := fmt.Sprintf("%s%s:%d:%d", keySearch, searchKey, page.Page, page.Size)
	return s.pagedList(ctx, key, page, func(ctx context.Context) ([]*entity.Product, int64, error) {
		return s.products.Search(ctx, searchKey, page.Size, page.Offset())
	})
}

// Update applies a partial edit. Only the owning seller may edit; the admin
// capability does not extend to editing listings.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, req dto.UpdateProductRequest) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Update", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := s.getForWrite(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != actor.ID {
		return nil, errorbank.Forbidden("you are not authorized to modify this product")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceCents != nil {
		if *req.PriceCents <= 0 {
			return nil, errorbank.BadRequest("price must be positive")
		}
		product.PriceCents = *req.PriceCents
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, errorbank.BadRequest("quantity must not be negative")
		}
		product.Quantity = *req.Quantity
	}
	if req.Discount != nil {
		product.Discount = *req.Discount
	}
	if req.Tags != nil {
		product.Tags = req.Tags
	}

	if err := s.products.Update(ctx, product); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update product", errorbank.WithCause(err))
	}

	s.invalidate(ctx, product.ID)
	return product, nil
}

// Delete removes a product. The owning seller or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := s.getForWrite(ctx, id)
	if err != nil {
		return err
	}
	if product.SellerID != actor.ID && !actor.Admin {
		return errorbank.Forbidden("you are not authorized to delete this product")
	}

	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		return errorbank.Internal("failed to delete product", errorbank.WithCause(err))
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *Service) getForWrite(ctx context.Context, id int64) (*entity.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}
	return product, nil
}

func (s *Service) pagedList(ctx context.Context, key string, page dto.PageRequest, load func(ctx context.Context) ([]*entity.Product, int64, error)) ([]*entity.Product, dto.PageMeta, error) {
	var cached pagePayload
	if s.readCache(ctx, key, &cached) {
		return cached.Products, dto.NewPageMeta(page, cached.Total), nil
	}

	products, total, err := load(ctx)
	if err != nil {
		return nil, dto.PageMeta{}, errorbank.Internal("failed to load products", errorbank.WithCause(err))
	}

	s.writeCache(ctx, key, pagePayload{Products: products, Total: total})
	return products, dto.NewPageMeta(page, total), nil
}

// readCache fills dest from the cache. The cache is advisory: any error is
// treated as a miss and logged at debug.
func (s *Service) readCache(ctx context.Context, key string, dest any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Debug("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate drops the entity key and every list/seller/search entry. The
// listing families are keyed by page, so prefix invalidation is the only
// correct option after a mutation.
func (s *Service) invalidate(ctx context.Context, id int64) {
	keys := []string{fmt.Sprintf("%s%d", keyByID, id)}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Debug("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
	for _, prefix := range []string{keyList, keySeller, keySearch} {
		if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
			s.logger.Debug("cache prefix invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}
