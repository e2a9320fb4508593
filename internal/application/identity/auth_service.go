// Package identity authenticates back-office administrators.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/identity"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// ErrAccountInactive is returned when a token belongs to an admin who can no longer log in
var ErrAccountInactive = shared.NewDomainError("ACCOUNT_INACTIVE", "Account is not active")

// AuthService handles admin authentication
type AuthService struct {
	adminRepo  identity.AdminUserRepository
	jwtService *auth.JWTService
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(adminRepo identity.AdminUserRepository, jwtService *auth.JWTService, logger *zap.Logger) *AuthService {
	return &AuthService{
		adminRepo:  adminRepo,
		jwtService: jwtService,
		logger:     logger.Named("auth"),
		now:        time.Now,
	}
}

// Login authenticates an admin and returns tokens
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	admin, err := s.adminRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Login attempt for unknown admin", zap.String("email", email), zap.String("ip", input.IP))
			return nil, identity.ErrInvalidCredentials
		}
		return nil, err
	}

	authErr := admin.Authenticate(input.Password, s.now())
	// failure counters and last login both change the record
	if err := s.adminRepo.Save(ctx, admin); err != nil {
		s.logger.Error("Failed to update admin after login attempt", zap.Error(err))
	}
	if authErr != nil {
		s.logger.Warn("Admin login failed",
			zap.String("email", email),
			zap.String("ip", input.IP),
			zap.Int("failed_attempts", admin.FailedAttempts),
			zap.Error(authErr))
		return nil, authErr
	}

	pair, err := s.jwtService.GenerateTokenPair(auth.Subject{AdminID: admin.ID, Email: admin.Email, Name: admin.Name})
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}

	s.logger.Info("Admin logged in",
		zap.String("admin_id", admin.ID.String()),
		zap.String("ip", input.IP))
	return &LoginResult{
		TokenResult: toTokenResult(pair),
		Admin:       AdminInfo{ID: admin.ID, Email: admin.Email, Name: admin.Name},
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The admin must still be active.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	adminID, err := claims.AdminUUID()
	if err != nil {
		return nil, auth.ErrInvalidClaims
	}
	admin, err := s.adminRepo.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrAccountInactive
		}
		return nil, err
	}
	if !admin.Active {
		return nil, ErrAccountInactive
	}

	pair, err := s.jwtService.RefreshTokenPair(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	result := toTokenResult(pair)
	return &result, nil
}

// Logout revokes the access token and, when given, the refresh token
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	claims, err := s.jwtService.ValidateAccessToken(ctx, input.AccessToken)
	if err != nil {
		return err
	}
	if err := s.jwtService.Revoke(ctx, claims); err != nil {
		return err
	}
	if input.RefreshToken != "" {
		refresh, err := s.jwtService.ValidateRefreshToken(ctx, input.RefreshToken)
		if err == nil && refresh.AdminID == claims.AdminID {
			if err := s.jwtService.Revoke(ctx, refresh); err != nil {
				return err
			}
		}
	}
	s.logger.Info("Admin logged out", zap.String("admin_id", claims.AdminID))
	return nil
}

// EnsureBootstrapAdmin creates the configured admin when no admin exists yet.
// It returns true when an admin was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, input BootstrapInput) (bool, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return false, nil
	}
	count, err := s.adminRepo.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	admin, err := identity.NewAdminUser(input.Email, input.Name, input.Password)
	if err != nil {
		return false, err
	}
	if err := s.adminRepo.Save(ctx, admin); err != nil {
		return false, err
	}
	s.logger.Info("Bootstrap admin created", zap.String("email", admin.Email))
	return true, nil
}

func toTokenResult(pair *auth.TokenPair) TokenResult {
	return TokenResult{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
	}
}
