package admin

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	adminservice "github.com/Additional-Code/tradehub/internal/service/admin"
	orderservice "github.com/Additional-Code/tradehub/internal/service/order"
	productservice "github.com/Additional-Code/tradehub/internal/service/product"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/admin")

// Handler exposes moderation endpoints over HTTP. Every route requires the
// admin capability.
type Handler struct {
	admin    *adminservice.Service
	orders   *orderservice.Service
	products *productservice.Service
}

// NewHandler constructs an admin Handler.
func NewHandler(admin *adminservice.Service, orders *orderservice.Service, products *productservice.Service) *Handler {
	return &Handler{admin: admin, orders: orders, products: products}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	g := e.Group("/api/admin", authn.Require(), authn.RequireAdmin())

	g.GET("/orders", h.listOrders)
	g.GET("/orders/search", h.searchOrders)
	g.PATCH("/orders/:id/status", h.setOrderStatus)
	g.PATCH("/orders/:id/payment", h.setPaymentStatus)
	g.PATCH("/orders/:id/cancel", h.cancelOrder)

	g.GET("/users", h.listUsers)
	g.GET("/users/search", h.searchUsers)
	g.DELETE("/users/:id", h.deleteUser)

	g.DELETE("/products/:id", h.deleteProduct)
}

func (h *Handler) listOrders(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.listOrders")
	defer span.End()

	orders, meta, err := h.orders.ListAll(ctx, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).WithMeta("page", meta).Build()
}

func (h *Handler) searchOrders(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.QueryParam("key"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("order search key must be an id")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.searchOrders", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	orders, err := h.orders.Search(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).Build()
}

func (h *Handler) setOrderStatus(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.setOrderStatus", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.SetStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) setPaymentStatus(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.setPaymentStatus", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.SetPaymentStatus(ctx, id, payload.PaymentStatus)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) cancelOrder(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.cancelOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.AdminCancel(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("order cancelled").WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) listUsers(c echo.Context) error {
	b := response.New(c)

	var page dto.PageRequest
	if err := c.Bind(&page); err != nil {
		return b.WithError(errorbank.BadRequest("invalid pagination", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.listUsers")
	defer span.End()

	users, meta, err := h.admin.ListUsers(ctx, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewUserResponses(users)).WithMeta("page", meta).Build()
}

func (h *Handler) searchUsers(c echo.Context) error {
	b := response.New(c)

	key := c.QueryParam("key")
	id, _ := strconv.ParseInt(key, 10, 64)

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.searchUsers")
	defer span.End()

	users, err := h.admin.SearchUsers(ctx, key, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewUserResponses(users)).Build()
}

func (h *Handler) deleteUser(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.deleteUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	if err := h.admin.DeleteUser(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("user deleted").Build()
}

func (h *Handler) deleteProduct(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.deleteProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	if err := h.products.Delete(ctx, middleware.Actor(c), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("product deleted").Build()
}
