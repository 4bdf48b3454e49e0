package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	service "github.com/Additional-Code/tradehub/internal/service/auth"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tradehub/transport/http/auth")

// Handler exposes authentication endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an auth Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	g := e.Group("/api/auth")
	g.POST("/signup", h.signup)
	g.POST("/verify-otp", h.verifyOTP)
	g.POST("/login", h.login)
	g.POST("/forgot-password", h.forgotPassword)
	g.POST("/reset-password", h.resetPassword)
	g.PUT("/change-password", h.changePassword, authn.Require())
}

func (h *Handler) signup(c echo.Context) error {
	b := response.New(c)

	var req dto.SignupRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.signup")
	defer span.End()

	user, err := h.svc.Signup(ctx, req)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).
		WithMessage("account created, verification code sent").
		WithData(dto.NewUserResponse(user)).
		Build()
}

func (h *Handler) verifyOTP(c echo.Context) error {
	b := response.New(c)

	var req dto.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.verifyOTP")
	defer span.End()

	if err := h.svc.VerifyOTP(ctx, req); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("account verified").Build()
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)

	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.login")
	defer span.End()

	res, err := h.svc.Login(ctx, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(res).Build()
}

func (h *Handler) forgotPassword(c echo.Context) error {
	b := response.New(c)

	var req dto.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.forgotPassword")
	defer span.End()

	if err := h.svc.ForgotPassword(ctx, req); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("reset code sent").Build()
}

func (h *Handler) resetPassword(c echo.Context) error {
	b := response.New(c)

	var req dto.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.resetPassword")
	defer span.End()

	if err := h.svc.ResetPassword(ctx, req); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("password reset").Build()
}

func (h *Handler) changePassword(c echo.Context) error {
	b := response.New(c)

	var req dto.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.changePassword")
	defer span.End()

	if err := h.svc.ChangePassword(ctx, middleware.Actor(c).ID, req); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("password changed").Build()
}
