package product

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	service "github.com/Additional-Code/tradehub/internal/service/product"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/product")

// Handler exposes product catalog endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a product Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	g := e.Group("/api/products")
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/seller", h.listMine, authn.Require())
	g.GET("/:id", h.getByID)
	g.POST("", h.create, authn.Require())
	g.PATCH("/:id", h.update, authn.Require())
	g.DELETE("/:id", h.remove, authn.Require())
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var req dto.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	form, err := c.MultipartForm()
	if err != nil {
		return b.WithError(errorbank.BadRequest("multipart form required", errorbank.WithCause(err))).Build()
	}
	files := form.File["images"]
	uploads := make([]service.ImageUpload, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			return b.WithError(errorbank.BadRequest("unreadable image upload", errorbank.WithCause(err))).Build()
		}
		defer f.Close()
		uploads = append(uploads, service.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      f,
			Size:        header.Size,
		})
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.create")
	defer span.End()

	product, err := h.svc.Create(ctx, middleware.Actor(c).ID, req, uploads)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewProductResponse(product)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.list")
	defer span.End()

	products, meta, err := h.svc.List(ctx, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProductResponses(products)).WithMeta("page", meta).Build()
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.listMine")
	defer span.End()

	products, meta, err := h.svc.ListBySeller(ctx, middleware.Actor(c).ID, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProductResponses(products)).WithMeta("page", meta).Build()
}

func (h *Handler) search(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.search")
	defer span.End()

	products, meta, err := h.svc.Search(ctx, c.QueryParam("key"), page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProductResponses(products)).WithMeta("page", meta).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.getByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProductResponse(product)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var req dto.UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.update", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := h.svc.Update(ctx, middleware.Actor(c), id, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProductResponse(product)).Build()
}

func (h *Handler) remove(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, middleware.Actor(c), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("product deleted").Build()
}
