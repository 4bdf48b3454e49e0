package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	service "github.com/Additional-Code/tradehub/internal/service/order"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/order")

// Handler exposes order lifecycle endpoints over HTTP. Every route requires
// an authenticated actor.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	g := e.Group("/api/orders", authn.Require())
	g.POST("", h.place)
	g.GET("/mine", h.listMine)
	g.GET("/seller", h.listSeller)
	g.PATCH("/:id/processing", h.markProcessing)
	g.PATCH("/:id/cancel", h.cancel)
}

func (h *Handler) place(c echo.Context) error {
	b := response.New(c)

	var req dto.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.place")
	defer span.End()

	order, err := h.svc.Place(ctx, middleware.Actor(c).ID, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).
		WithMessage("order placed").
		WithData(dto.NewOrderResponse(order)).
		Build()
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listMine")
	defer span.End()

	orders, meta, err := h.svc.ListForBuyer(ctx, middleware.Actor(c).ID, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).WithMeta("page", meta).Build()
}

func (h *Handler) listSeller(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listSeller")
	defer span.End()

	orders, meta, err := h.svc.ListForSeller(ctx, middleware.Actor(c).ID, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).WithMeta("page", meta).Build()
}

func (h *Handler) markProcessing(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.markProcessing", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.MarkProcessing(ctx, middleware.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, middleware.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("order cancelled").WithData(dto.NewOrderResponse(order)).Build()
}
