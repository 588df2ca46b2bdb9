package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/repository"
)

// AuthService coordinates registration, login and token identification.
type AuthService struct {
	users          repository.UserRepository
	tokenMgr       *auth.TokenManager
	revocations    auth.RevocationStore
	bcryptCost     int
	minPasswordLen int
	dummyHash      string
	logger         *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Revocations  auth.RevocationStore
	TokenManager *auth.TokenManager
}

// NewAuthService builds the service. A TokenManager is derived from cfg
// unless one is supplied.
func NewAuthService(cfg config.Config, deps AuthDependencies, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokenMgr := deps.TokenManager
	if tokenMgr == nil {
		tokenMgr = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	}
	revocations := deps.Revocations
	if revocations == nil {
		revocations = auth.NoopRevocationStore{}
	}
	// Unknown emails are compared against this hash so that login takes the
	// same time whether or not the account exists.
	dummyHash, err := auth.HashPassword("symptom-service-timing-equalizer", cfg.Auth.BcryptCost)
	if err != nil {
		logger.Warn("could not prepare dummy password hash", zap.Error(err))
	}
	return &AuthService{
		users:          deps.UserRepo,
		tokenMgr:       tokenMgr,
		revocations:    revocations,
		bcryptCost:     cfg.Auth.BcryptCost,
		minPasswordLen: cfg.Auth.MinPasswordLength,
		dummyHash:      dummyHash,
		logger:         logger,
	}
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*domain.User, string, time.Time, error) {
	email = repository.NormalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	if err := s.validateRegistration(email, password, fullName); err != nil {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		IsActive:     true,
	}
	// Uniqueness is enforced by the store's atomic insert.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, meta, err := s.tokenMgr.Issue(user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, token, meta.ExpiresAt, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = auth.ComparePassword(s.dummyHash, password)
			return nil, "", time.Time{}, domain.ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", time.Time{}, domain.ErrAccountDisabled
	}

	token, meta, err := s.tokenMgr.Issue(user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, meta.ExpiresAt, nil
}

// Identify resolves a token to its user. A deactivated account is treated as
// unauthenticated.
func (s *AuthService) Identify(ctx context.Context, token string) (*domain.User, error) {
	meta, err := s.tokenMgr.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	revoked, err := s.revocations.IsRevoked(ctx, meta.ID)
	if err != nil {
		s.logger.Warn("revocation check failed, accepting token", zap.Error(err))
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", domain.ErrUnauthenticated)
	}

	user, err := s.users.GetByID(ctx, meta.SubjectID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account disabled", domain.ErrUnauthenticated)
	}
	return user, nil
}

// Logout denies the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	meta, err := s.tokenMgr.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if err := s.revocations.Revoke(ctx, meta.ID, meta.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) validateRegistration(email, password, fullName string) error {
	verr := domain.NewValidationError()
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "must be a valid email address")
	}
	switch {
	case utf8.RuneCountInString(password) < s.minPasswordLen:
		verr.Add("password", fmt.Sprintf("must be at least %d characters", s.minPasswordLen))
	case len(password) > auth.MaxPasswordBytes:
		verr.Add("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}
	if fullName == "" {
		verr.Add("full_name", "is required")
	}
	return verr.OrNil()
}
