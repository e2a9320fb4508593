package identity

import (
	"time"

	"github.com/google/uuid"
)

// LoginInput contains the input for admin login
type LoginInput struct {
	Email    string
	Password string
	IP       string // Client IP for login tracking
}

// AdminInfo contains basic admin information returned after login
type AdminInfo struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// TokenResult contains an issued token pair
type TokenResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	TokenResult
	Admin AdminInfo `json:"admin"`
}

// LogoutInput contains the tokens to revoke on logout
type LogoutInput struct {
	AccessToken  string
	RefreshToken string // optional
}

// BootstrapInput describes the first admin created on an empty database
type BootstrapInput struct {
	Email    string
	Password string
	Name     string
}
