package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/notifier"
	userrepo "github.com/Additional-Code/tradehub/internal/repository/user"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tradehub/service/auth")

// Service implements account lifecycle: signup with OTP verification,
// login, and the password reset flows.
type Service struct {
	users    *userrepo.Repository
	tokens   *auth.TokenManager
	notifier *notifier.Dispatcher
	logger   *zap.Logger
	otpTTL   time.Duration
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Users    *userrepo.Repository
	Tokens   *auth.TokenManager
	Notifier *notifier.Dispatcher
	Config   config.Config
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		users:    p.Users,
		tokens:   p.Tokens,
		notifier: p.Notifier,
		logger:   p.Logger,
		otpTTL:   p.Config.Auth.OTPTTL,
	}
}

// Signup registers an unverified account and mails its verification code.
func (s *Service) Signup(ctx context.Context, req dto.SignupRequest) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Signup")
	defer span.End()

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, errorbank.BadRequest("name, email and password are required")
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to check existing account", errorbank.WithCause(err))
	}
	if exists {
		return nil, errorbank.Conflict("an account with this email already exists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to generate verification code", errorbank.WithCause(err))
	}

	now := time.Now().UTC()
	expiry := now.Add(s.otpTTL)
	user := &entity.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		OTP:          otp,
		OTPExpiresAt: &expiry,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, errorbank.Internal("failed to create account", errorbank.WithCause(err))
	}

	s.notifier.Dispatch(ctx, user.Email, "Verify your TradeHub account",
		fmt.Sprintf("Your verification code is: %s. It expires in %d minutes.", otp, int(s.otpTTL.Minutes())))

	return user, nil
}

// VerifyOTP confirms the code mailed at signup. An expired code removes the
// unverified account so the email can be reused for a fresh signup.
func (s *Service) VerifyOTP(ctx context.Context, req dto.VerifyOTPRequest) error {
	ctx, span := serviceTracer.Start(ctx, "AuthService.VerifyOTP")
	defer span.End()

	user, err := s.getByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return errorbank.Conflict("account is already verified")
	}
	if user.OTP == "" || user.OTP != req.OTP {
		return errorbank.BadRequest("invalid verification code")
	}
	if user.OTPExpiresAt == nil || time.Now().After(*user.OTPExpiresAt) {
		if err := s.users.Delete(ctx, user.ID); err != nil && !errors.Is(err, userrepo.ErrNotFound) {
			s.logger.Warn("expired signup cleanup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		return errorbank.BadRequest("verification code expired, please sign up again")
	}

	user.IsVerified = true
	user.OTP = ""
	user.OTPExpiresAt = nil
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to verify account", errorbank.WithCause(err))
	}
	return nil
}

// Login authenticates a verified user and issues a session token.
func (s *Service) Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return dto.LoginResponse{}, errorbank.Unauthorized("invalid email or password")
		}
		span.RecordError(err)
		return dto.LoginResponse{}, errorbank.Internal("failed to load account", errorbank.WithCause(err))
	}
	if !user.IsVerified {
		return dto.LoginResponse{}, errorbank.Forbidden("account is not verified")
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return dto.LoginResponse{}, errorbank.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		span.RecordError(err)
		return dto.LoginResponse{}, errorbank.Internal("failed to issue token", errorbank.WithCause(err))
	}
	actor := s.tokens.Resolve(user.ID)
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	return dto.LoginResponse{Token: token, IsAdmin: actor.Admin}, nil
}

// ForgotPassword issues a fresh OTP for a verified account and mails it.
func (s *Service) ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest) error {
	ctx, span := serviceTracer.Start(ctx, "AuthService.ForgotPassword")
	defer span.End()

	user, err := s.getByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to generate reset code", errorbank.WithCause(err))
	}
	expiry := time.Now().UTC().Add(s.otpTTL)
	user.OTP = otp
	user.OTPExpiresAt = &expiry
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to store reset code", errorbank.WithCause(err))
	}

	s.notifier.Dispatch(ctx, user.Email, "Password Reset",
		fmt.Sprintf("Your password reset code is: %s. It expires in %d minutes.", otp, int(s.otpTTL.Minutes())))
	return nil
}

// ResetPassword completes a password reset with a valid, unexpired OTP.
func (s *Service) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) error {
	ctx, span := serviceTracer.Start(ctx, "AuthService.ResetPassword")
	defer span.End()

	if req.NewPassword == "" {
		return errorbank.BadRequest("new password is required")
	}

	user, err := s.getByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user.OTP == "" || user.OTP != req.OTP {
		return errorbank.BadRequest("invalid reset code")
	}
	if user.OTPExpiresAt == nil || time.Now().After(*user.OTPExpiresAt) {
		return errorbank.BadRequest("reset code expired")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}
	user.PasswordHash = hash
	user.OTP = ""
	user.OTPExpiresAt = nil
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to reset password", errorbank.WithCause(err))
	}
	return nil
}

// ChangePassword rotates an authenticated user's password after checking
// the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, req dto.ChangePasswordRequest) error {
	ctx, span := serviceTracer.Start(ctx, "AuthService.ChangePassword", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if req.NewPassword == "" {
		return errorbank.BadRequest("new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		return errorbank.Internal("failed to load account", errorbank.WithCause(err))
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return errorbank.Unauthorized("current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to change password", errorbank.WithCause(err))
	}
	return nil
}

func (s *Service) getByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		return nil, errorbank.Internal("failed to load account", errorbank.WithCause(err))
	}
	return user, nil
}
