package auth

import "go.uber.org/fx"

// Module provides the auth service to Fx.
var Module = fx.Provide(NewService)
