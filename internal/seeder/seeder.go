package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// All seeds every dataset in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Users(ctx); err != nil {
		return err
	}
	return s.Products(ctx)
}

// Users seeds verified example accounts if they are missing. The first
// account is intended as the configured admin identity.
func (s *Seeder) Users(ctx context.Context) error {
	hash, err := auth.HashPassword("password123")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	samples := []entity.User{
		{Name: "Admin", Email: "admin@tradehub.local", PasswordHash: hash, IsVerified: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Sam Seller", Email: "seller@tradehub.local", PasswordHash: hash, IsVerified: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Bella Buyer", Email: "buyer@tradehub.local", PasswordHash: hash, IsVerified: true, CreatedAt: now, UpdatedAt: now},
	}

	for _, sample := range samples {
		user := sample
		_, err := s.db.NewInsert().Model(&user).
			On("CONFLICT (email) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded users", zap.Int("count", len(samples)))
	}
	return nil
}

// Products seeds an example catalog for the seeded seller. Skipped when the
// catalog already has rows.
func (s *Seeder) Products(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seller := new(entity.User)
	if err := s.db.NewSelect().Model(seller).Where("email = ?", "seller@tradehub.local").Scan(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	samples := []entity.Product{
		{
			Name:        "Mechanical Keyboard",
			Description: "Hot-swappable 75% board with tactile switches",
			PriceCents:  8999,
			Category:    "electronics",
			Quantity:    25,
			Images:      []string{"https://cdn.tradehub.local/seed/keyboard.jpg"},
			SellerID:    seller.ID,
			Tags:        []string{"keyboard", "mechanical"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Name:        "Canvas Backpack",
			Description: "Water-resistant 20L daypack",
			PriceCents:  4500,
			Category:    "bags",
			Quantity:    40,
			Images:      []string{"https://cdn.tradehub.local/seed/backpack.jpg"},
			SellerID:    seller.ID,
			Tags:        []string{"backpack", "travel"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	for _, sample := range samples {
		product := sample
		if _, err := s.db.NewInsert().Model(&product).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded products", zap.Int("count", len(samples)))
	}
	return nil
}
