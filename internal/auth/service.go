package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/star4ce/star4ce-backend/internal"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/mailer"
)

type Service struct {
	repo           Repository
	tokenGenerator TokenGenerator
	mailer         mailer.Mailer
	bcryptCost     int
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(repo Repository, tokenGen TokenGenerator, m mailer.Mailer, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		mailer:         m,
		bcryptCost:     bcryptCost,
		logger:         logger,
		now:            time.Now,
	}
}

// Register creates an unverified account and emails a 6-digit verification
// code. Managers stay unapproved until an admin or corporate user approves
// them; that gates actions, not login.
func (s *Service) Register(dto RegisterDTO) (*userdm.User, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetUserByEmail(dto.Email); err == nil && existing != nil {
		return nil, internal.NewConflictError("An account with this email already exists", internal.ErrCodeEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	code, err := GenerateNumericCode(6)
	if err != nil {
		return nil, internal.NewInternalError("failed to generate verification code", err)
	}

	expiresAt := s.now().Add(VerificationCodeTTL)
	u := &userdm.User{
		Email:                 dto.Email,
		Name:                  dto.Name,
		PasswordHash:          string(hash),
		Role:                  dto.Role,
		IsVerified:            false,
		VerificationCode:      &code,
		VerificationExpiresAt: &expiresAt,
	}

	if err := s.repo.CreateUser(u); err != nil {
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.sendVerificationEmail(u.Email, code)

	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Authenticate validates credentials and returns a signed token. The error is
// uniform for unknown email and wrong password. Logging in unverified re-issues
// a fresh verification code instead of silently failing.
func (s *Service) Authenticate(dto LoginDTO) (*AuthResult, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByEmail(dto.Email)
	if err != nil || u == nil {
		return nil, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if !u.IsVerified {
		if err := s.issueVerificationCode(u); err != nil {
			s.logger.Error("failed to re-issue verification code", "user_id", u.ID, "error", err)
		}
		return nil, internal.NewUnauthorizedError(
			"Email not verified. A new verification code has been sent to your inbox.",
			internal.ErrCodeEmailNotVerified)
	}

	token, err := s.tokenGenerator.GenerateAccessToken(u.Email, u.Role)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("user authenticated", "user_id", u.ID, "role", u.Role)
	return &AuthResult{Token: token, User: u}, nil
}

// VerifyEmail consumes a verification code. Expired codes do not delete the
// account here; abandoned registrations are reaped by the periodic cleanup
// worker instead.
func (s *Service) VerifyEmail(dto VerifyDTO) error {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetUserByEmail(dto.Email)
	if err != nil || u == nil {
		return internal.ErrUserNotFound
	}

	if u.IsVerified {
		return internal.NewConflictError("Email is already verified", internal.ErrCodeAlreadyVerified)
	}

	now := s.now()
	if u.VerificationExpiresAt != nil && !now.Before(*u.VerificationExpiresAt) {
		return internal.NewValidationError("Verification code has expired. Request a new one.", internal.ErrCodeCodeExpired)
	}

	if !u.VerificationCodeValid(dto.Code, now) {
		return internal.NewValidationError("Verification code does not match", internal.ErrCodeCodeMismatch)
	}

	u.IsVerified = true
	u.VerificationCode = nil
	u.VerificationExpiresAt = nil

	if err := s.repo.UpdateUser(u); err != nil {
		return internal.NewInternalError("failed to update user", err)
	}

	s.logger.Info("email verified", "user_id", u.ID)
	return nil
}

func (s *Service) ResendVerification(email string) error {
	dto := EmailDTO{Email: email}
	dto.Normalize()

	u, err := s.repo.GetUserByEmail(dto.Email)
	if err != nil || u == nil {
		return internal.ErrUserNotFound
	}

	if u.IsVerified {
		return internal.NewConflictError("Email is already verified", internal.ErrCodeAlreadyVerified)
	}

	return s.issueVerificationCode(u)
}

// RequestReset issues a 10-minute reset code. It never reveals whether the
// email exists.
func (s *Service) RequestReset(email string) error {
	dto := EmailDTO{Email: email}
	dto.Normalize()

	u, err := s.repo.GetUserByEmail(dto.Email)
	if err != nil || u == nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	code, err := GenerateNumericCode(6)
	if err != nil {
		return internal.NewInternalError("failed to generate reset code", err)
	}

	expiresAt := s.now().Add(ResetCodeTTL)
	u.ResetCode = &code
	u.ResetExpiresAt = &expiresAt

	if err := s.repo.UpdateUser(u); err != nil {
		return internal.NewInternalError("failed to store reset code", err)
	}

	s.sendEmailAsync(func(ctx context.Context) error {
		return s.mailer.SendPasswordResetCode(ctx, u.Email, code)
	})

	return nil
}

func (s *Service) ResetPassword(dto ResetPasswordDTO) error {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetUserByEmail(dto.Email)
	if err != nil || u == nil {
		return internal.ErrUserNotFound
	}

	now := s.now()
	if u.ResetExpiresAt != nil && !now.Before(*u.ResetExpiresAt) {
		return internal.NewValidationError("Reset code has expired. Request a new one.", internal.ErrCodeCodeExpired)
	}

	if !u.ResetCodeValid(dto.Code, now) {
		return internal.NewValidationError("Reset code does not match", internal.ErrCodeCodeMismatch)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.NewPassword), s.bcryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}

	u.PasswordHash = string(hash)
	u.ResetCode = nil
	u.ResetExpiresAt = nil

	if err := s.repo.UpdateUser(u); err != nil {
		return internal.NewInternalError("failed to update password", err)
	}

	s.logger.Info("password reset", "user_id", u.ID)
	return nil
}

func (s *Service) Me(userID int64) (*userdm.User, error) {
	u, err := s.repo.GetUserByID(userID)
	if err != nil || u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

func (s *Service) GetUserByEmail(email string) (*userdm.User, error) {
	u, err := s.repo.GetUserByEmail(email)
	if err != nil || u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

// CleanupUnverified deletes accounts that never completed verification before
// the cutoff. Safe to run concurrently with normal traffic.
func (s *Service) CleanupUnverified(maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge)
	deleted, err := s.repo.DeleteUnverifiedBefore(cutoff)
	if err != nil {
		return 0, internal.NewInternalError("failed to clean up unverified accounts", err)
	}

	if deleted > 0 {
		s.logger.Info("cleaned up unverified accounts", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (s *Service) issueVerificationCode(u *userdm.User) error {
	code, err := GenerateNumericCode(6)
	if err != nil {
		return internal.NewInternalError("failed to generate verification code", err)
	}

	expiresAt := s.now().Add(VerificationCodeTTL)
	u.VerificationCode = &code
	u.VerificationExpiresAt = &expiresAt

	if err := s.repo.UpdateUser(u); err != nil {
		return internal.NewInternalError("failed to store verification code", err)
	}

	s.sendVerificationEmail(u.Email, code)
	return nil
}

func (s *Service) sendVerificationEmail(email, code string) {
	s.sendEmailAsync(func(ctx context.Context) error {
		return s.mailer.SendVerificationCode(ctx, email, code)
	})
}

// Email delivery is best effort; failures are logged and never surfaced to
// the request that triggered them.
func (s *Service) sendEmailAsync(send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Error("email delivery failed", "error", err)
		}
	}()
}
