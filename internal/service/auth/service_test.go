package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/auth"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/dto"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/notifier"
	userrepo "github.com/Additional-Code/tradehub/internal/repository/user"
	svc "github.com/Additional-Code/tradehub/internal/service/auth"
	"github.com/Additional-Code/tradehub/internal/testutil"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

type AuthServiceSuite struct {
	suite.Suite

	ctx     context.Context
	users   *userrepo.Repository
	tokens  *auth.TokenManager
	service *svc.Service
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctx = context.Background()
	conns := testutil.NewDB(s.T())
	s.users = userrepo.NewRepository(conns)

	cfg := config.Config{
		Auth: config.Auth{
			JWTSecret:   "test-secret",
			TokenTTL:    time.Hour,
			OTPTTL:      10 * time.Minute,
			AdminUserID: 1,
		},
	}
	s.tokens = auth.NewTokenManager(cfg)

	logger := zap.NewNop()
	s.service = svc.NewService(svc.Params{
		Users:    s.users,
		Tokens:   s.tokens,
		Notifier: notifier.NewDispatcher(notifier.NewSender(cfg, logger), logger),
		Config:   cfg,
		Logger:   logger,
	})
}

func (s *AuthServiceSuite) signup(email string) *entity.User {
	user, err := s.service.Signup(s.ctx, dto.SignupRequest{
		Name:     "Tester",
		Email:    email,
		Password: "hunter22",
	})
	s.Require().NoError(err)
	return user
}

func (s *AuthServiceSuite) TestSignup_CreatesUnverifiedUserWithOTP() {
	user := s.signup("new@example.com")

	stored, err := s.users.GetByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.False(stored.IsVerified)
	s.Len(stored.OTP, 6)
	s.Require().NotNil(stored.OTPExpiresAt)
	s.True(stored.OTPExpiresAt.After(time.Now()))
	s.NotEqual("hunter22", stored.PasswordHash)
}

func (s *AuthServiceSuite) TestSignup_DuplicateEmail() {
	s.signup("dup@example.com")

	_, err := s.service.Signup(s.ctx, dto.SignupRequest{Name: "x", Email: "dup@example.com", Password: "pw"})
	s.Require().Error(err)
	s.Equal(errorbank.KindConflict, errorbank.From(err).Kind())
}

func (s *AuthServiceSuite) TestVerifyOTP_Success() {
	user := s.signup("verify@example.com")
	stored, err := s.users.GetByID(s.ctx, user.ID)
	s.Require().NoError(err)

	err = s.service.VerifyOTP(s.ctx, dto.VerifyOTPRequest{Email: user.Email, OTP: stored.OTP})
	s.Require().NoError(err)

	stored, err = s.users.GetByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.True(stored.IsVerified)
	s.Empty(stored.OTP)
}

func (s *AuthServiceSuite) TestVerifyOTP_WrongCode() {
	user := s.signup("wrong@example.com")

	err := s.service.VerifyOTP(s.ctx, dto.VerifyOTPRequest{Email: user.Email, OTP: "000000"})
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func (s *AuthServiceSuite) TestVerifyOTP_ExpiredDeletesUser() {
	user := s.signup("expired@example.com")
	stored, err := s.users.GetByID(s.ctx, user.ID)
	s.Require().NoError(err)

	past := time.Now().UTC().Add(-time.Minute)
	stored.OTPExpiresAt = &past
	s.Require().NoError(s.users.Update(s.ctx, stored))

	err = s.service.VerifyOTP(s.ctx, dto.VerifyOTPRequest{Email: user.Email, OTP: stored.OTP})
	s.Require().Error(err)
	s.Equal(errorbank.KindBadRequest, errorbank.From(err).Kind())

	_, err = s.users.GetByID(s.ctx, user.ID)
	s.Require().True(errors.Is(err, userrepo.ErrNotFound))
}

func (s *AuthServiceSuite) verifiedUser(email string) *entity.User {
	user := s.signup(email)
	stored, err := s.users.GetByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.VerifyOTP(s.ctx, dto.VerifyOTPRequest{Email: email, OTP: stored.OTP}))
	return stored
}

func (s *AuthServiceSuite) TestLogin_UnverifiedForbidden() {
	user := s.signup("pending@example.com")

	_, err := s.service.Login(s.ctx, dto.LoginRequest{Email: user.Email, Password: "hunter22"})
	s.Require().Error(err)
	s.Equal(errorbank.KindForbidden, errorbank.From(err).Kind())
}

func (s *AuthServiceSuite) TestLogin_Success() {
	user := s.verifiedUser("login@example.com")

	res, err := s.service.Login(s.ctx, dto.LoginRequest{Email: user.Email, Password: "hunter22"})
	s.Require().NoError(err)
	s.NotEmpty(res.Token)

	actor, err := s.tokens.Verify(res.Token)
	s.Require().NoError(err)
	s.Equal(user.ID, actor.ID)
	s.Equal(actor.Admin, res.IsAdmin)
}

func (s *AuthServiceSuite) TestLogin_WrongPassword() {
	user := s.verifiedUser("badpw@example.com")

	_, err := s.service.Login(s.ctx, dto.LoginRequest{Email: user.Email, Password: "nope"})
	s.Require().Error(err)
	s.Equal(errorbank.KindUnauthorized, errorbank.From(err).Kind())
}

func (s *AuthServiceSuite) TestResetPasswordFlow() {
	user := s.verifiedUser("reset@example.com")

	s.Require().NoError(s.service.ForgotPassword(s.ctx, dto.ForgotPasswordRequest{Email: user.Email}))

	stored, err := s.users.GetByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(stored.OTP)

	err = s.service.ResetPassword(s.ctx, dto.ResetPasswordRequest{
		Email:       user.Email,
		OTP:         stored.OTP,
		NewPassword: "fresh-pw",
	})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, dto.LoginRequest{Email: user.Email, Password: "fresh-pw"})
	s.Require().NoError(err)
}

func (s *AuthServiceSuite) TestChangePassword() {
	user := s.verifiedUser("change@example.com")

	err := s.service.ChangePassword(s.ctx, user.ID, dto.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "next-pw",
	})
	s.Require().Error(err)
	s.Equal(errorbank.KindUnauthorized, errorbank.From(err).Kind())

	err = s.service.ChangePassword(s.ctx, user.ID, dto.ChangePasswordRequest{
		CurrentPassword: "hunter22",
		NewPassword:     "next-pw",
	})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, dto.LoginRequest{Email: user.Email, Password: "next-pw"})
	s.Require().NoError(err)
}
