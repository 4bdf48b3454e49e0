package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/config"
	orderservice "github.com/Additional-Code/tradehub/internal/service/order"
)

var sweeperTracer = otel.Tracer("github.com/Additional-Code/tradehub/sweeper")

// Module registers the sweeper on the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(registerLifecycle),
)

// Sweeper runs the scheduled order maintenance duties: cancelling stale
// pending orders and reminding sellers about processing orders. It never
// fails the process; every error is logged and swallowed.
type Sweeper struct {
	orders     *orderservice.Service
	logger     *zap.Logger
	cron       *cron.Cron
	schedule   string
	staleAfter time.Duration
	enabled    bool
}

// Params defines dependencies for constructing Sweeper.
type Params struct {
	fx.In

	Orders *orderservice.Service
	Config config.Config
	Logger *zap.Logger
}

// NewSweeper wires a Sweeper from configuration.
func NewSweeper(p Params) *Sweeper {
	return &Sweeper{
		orders:     p.Orders,
		logger:     p.Logger,
		cron:       cron.New(),
		schedule:   p.Config.Sweeper.Schedule,
		staleAfter: p.Config.Sweeper.StaleAfter,
		enabled:    p.Config.Sweeper.Enabled,
	}
}

func registerLifecycle(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}

// Start schedules the daily run. Disabled sweepers start as no-ops so the
// application graph stays identical across environments.
func (s *Sweeper) Start() error {
	if !s.enabled {
		s.logger.Info("order sweeper disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Run(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("order sweeper scheduled",
		zap.String("schedule", s.schedule),
		zap.Duration("stale_after", s.staleAfter),
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Run executes both duties once. Used by the cron schedule and the one-shot
// CLI command.
func (s *Sweeper) Run(ctx context.Context) {
	ctx, span := sweeperTracer.Start(ctx, "Sweeper.Run")
	defer span.End()

	cutoff := time.Now().UTC().Add(-s.staleAfter)
	cancelled, err := s.orders.CancelStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale order sweep failed", zap.Error(err))
	} else {
		s.logger.Info("stale order sweep finished", zap.Int("cancelled", cancelled))
	}

	reminded, err := s.orders.RemindProcessing(ctx)
	if err != nil {
		s.logger.Error("processing reminder sweep failed", zap.Error(err))
	} else {
		s.logger.Info("processing reminder sweep finished", zap.Int("reminded", reminded))
	}
}
