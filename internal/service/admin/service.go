package admin

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/notifier"
	userrepo "github.com/Additional-Code/tradehub/internal/repository/user"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/admin")

// Service implements user moderation. Order and product moderation run
// through the order and product services so their invariants hold on the
// admin path too.
type Service struct {
	users    *userrepo.Repository
	notifier *notifier.Dispatcher
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Users    *userrepo.Repository
	Notifier *notifier.Dispatcher
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		users:    p.Users,
		notifier: p.Notifier,
		logger:   p.Logger,
	}
}

// ListUsers returns a page of accounts newest first.
func (s *Service) ListUsers(ctx context.Context, page dto.PageRequest) ([]*entity.User, dto.PageMeta, error) {
	ctx, span := serviceTracer.Start(ctx, "AdminService.ListUsers")
	defer span.End()

	page = page.Normalize()
	users, total, err := s.users.List(ctx, page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, dto.PageMeta{}, errorbank.Internal("failed to load users", errorbank.WithCause(err))
	}
	return users, dto.NewPageMeta(page, total), nil
}

// SearchUsers matches accounts by name substring or exact id.
func (s *Service) SearchUsers(ctx context.Context, key string, id int64) ([]*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AdminService.SearchUsers")
	defer span.End()

	if key == "" && id == 0 {
		return nil, errorbank.BadRequest("search key is required")
	}
	users, err := s.users.Search(ctx, key, id)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to search users", errorbank.WithCause(err))
	}
	return users, nil
}

// DeleteUser removes an account and mails the deletion notice best-effort.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "AdminService.DeleteUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		return errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		return errorbank.Internal("failed to delete user", errorbank.WithCause(err))
	}

	s.notifier.Dispatch(ctx, user.Email, "Account Deletion",
		"Your account has been deleted by the administrator.")
	return nil
}
