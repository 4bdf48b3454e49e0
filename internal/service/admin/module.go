package admin

import "go.uber.org/fx"

// Module provides the admin service to Fx.
var Module = fx.Provide(NewService)
