package handler

import (
	"net/http"
	"testing"
	"time"

	appidentity "github.com/bhavan/backend/internal/application/identity"
	"github.com/bhavan/backend/internal/domain/identity"
	"github.com/bhavan/backend/internal/infrastructure/auth"
	"github.com/bhavan/backend/internal/infrastructure/cache"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func authRouter(t *testing.T, svc *MockAuthService) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "handler-test-secret-32-characters!",
		AccessTokenExpiration:  time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "bhavan-test",
	}, store)

	h := NewAuthHandler(svc)
	r := newTestRouter()
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/refresh", h.RefreshToken)
	protected := r.Group("/api/auth", middleware.JWTAuthMiddleware(jwtService, zap.NewNop()))
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)
	return r, jwtService
}

func TestAuthHandler_Login(t *testing.T) {
	svc := new(MockAuthService)
	r, _ := authRouter(t, svc)
	adminID := uuid.New()

	svc.On("Login", mock.Anything, mock.MatchedBy(func(in appidentity.LoginInput) bool {
		return in.Email == "ops@bhavan.example" && in.Password == "correct horse" && in.IP != ""
	})).Return(&appidentity.LoginResult{
		TokenResult: appidentity.TokenResult{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"},
		Admin:       appidentity.AdminInfo{ID: adminID, Email: "ops@bhavan.example", Name: "Ops"},
	}, nil)
	svc.On("Login", mock.Anything, mock.MatchedBy(func(in appidentity.LoginInput) bool {
		return in.Password == "wrong"
	})).Return(nil, identity.ErrInvalidCredentials)

	rec := doJSON(r, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@bhavan.example", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeMap(t, rec)["data"].(map[string]any)
	assert.Equal(t, "access", data["access_token"])
	assert.Equal(t, adminID.String(), data["admin"].(map[string]any)["id"])

	rec = doJSON(r, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@bhavan.example", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, dto.ErrCodeInvalidCredentials, decodeResponse(t, rec).Error.Code)

	rec = doJSON(r, http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Refresh(t *testing.T) {
	svc := new(MockAuthService)
	r, _ := authRouter(t, svc)

	svc.On("Refresh", mock.Anything, "good").Return(&appidentity.TokenResult{AccessToken: "new-access"}, nil)
	svc.On("Refresh", mock.Anything, "stale").Return(nil, auth.ErrMaxRefreshExceeded)

	rec := doJSON(r, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": "good"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-access", decodeMap(t, rec)["data"].(map[string]any)["access_token"])

	rec = doJSON(r, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": "stale"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	svc := new(MockAuthService)
	r, jwtService := authRouter(t, svc)
	adminID := uuid.New()
	pair, err := jwtService.GenerateTokenPair(auth.Subject{AdminID: adminID, Email: "ops@bhavan.example", Name: "Ops"})
	require.NoError(t, err)

	rec := doJSON(r, http.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeMap(t, rec)["data"].(map[string]any)
	assert.Equal(t, adminID.String(), me["id"])
	assert.Equal(t, "Ops", me["name"])

	svc.On("Logout", mock.Anything, appidentity.LogoutInput{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}).Return(nil).Once()

	rec = doJSON(r, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": pair.RefreshToken},
		"Authorization", "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)

	rec = doJSON(r, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
