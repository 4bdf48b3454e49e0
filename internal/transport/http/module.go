package http

import (
	"go.uber.org/fx"

	admintransport "github.com/Additional-Code/tradehub/internal/transport/http/admin"
	authtransport "github.com/Additional-Code/tradehub/internal/transport/http/auth"
	"github.com/Additional-Code/tradehub/internal/transport/http/middleware"
	ordertransport "github.com/Additional-Code/tradehub/internal/transport/http/order"
	producttransport "github.com/Additional-Code/tradehub/internal/transport/http/product"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	middleware.Module,
	authtransport.Module,
	producttransport.Module,
	ordertransport.Module,
	admintransport.Module,
)
