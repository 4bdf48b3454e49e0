package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/cache"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/logger"
	"github.com/Additional-Code/tradehub/internal/messaging"
	"github.com/Additional-Code/tradehub/internal/notifier"
	"github.com/Additional-Code/tradehub/internal/observability"
	repositoryorder "github.com/Additional-Code/tradehub/internal/repository/order"
	repositoryproduct "github.com/Additional-Code/tradehub/internal/repository/product"
	repositoryuser "github.com/Additional-Code/tradehub/internal/repository/user"
	httpserver "github.com/Additional-Code/tradehub/internal/server/http"
	serviceadmin "github.com/Additional-Code/tradehub/internal/service/admin"
	serviceauth "github.com/Additional-Code/tradehub/internal/service/auth"
	serviceorder "github.com/Additional-Code/tradehub/internal/service/order"
	serviceproduct "github.com/Additional-Code/tradehub/internal/service/product"
	"github.com/Additional-Code/tradehub/internal/storage"
	"github.com/Additional-Code/tradehub/internal/sweeper"
	transporthttp "github.com/Additional-Code/tradehub/internal/transport/http"
	"github.com/Additional-Code/tradehub/internal/worker"
	workerorder "github.com/Additional-Code/tradehub/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	logger.Module,
	cache.Module,
	database.Module,
	messaging.Module,
	observability.Module,
	auth.Module,
	notifier.Module,
	storage.Module,
	repositoryuser.Module,
	repositoryproduct.Module,
	repositoryorder.Module,
	serviceauth.Module,
	serviceproduct.Module,
	serviceorder.Module,
	serviceadmin.Module,
)

// HTTP wires the HTTP transport and the order sweeper on top of the core
// modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	sweeper.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
