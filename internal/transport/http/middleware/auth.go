package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

// actorKey is the echo context key the authenticated actor is stored under.
const actorKey = "tradehub.actor"

// Module provides the authenticator to Fx.
var Module = fx.Provide(NewAuthenticator)

// Authenticator guards routes with bearer tokens and resolves the admin
// capability.
type Authenticator struct {
	tokens *auth.TokenManager
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *auth.TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Require rejects requests without a valid bearer token and stores the
// resolved actor on the context.
func (a *Authenticator) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return response.New(c).WithError(errorbank.Unauthorized("missing bearer token")).Build()
			}
			actor, err := a.tokens.Verify(token)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// RequireAdmin rejects authenticated actors without the admin capability.
// Must run after Require.
func (a *Authenticator) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !Actor(c).Admin {
				return response.New(c).WithError(errorbank.Forbidden("admin access required")).Build()
			}
			return next(c)
		}
	}
}

// Actor returns the authenticated actor stored by Require. The zero Actor
// is returned on unguarded routes.
func Actor(c echo.Context) auth.Actor {
	actor, _ := c.Get(actorKey).(auth.Actor)
	return actor
}
