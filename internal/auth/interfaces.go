package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/database/models"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, email string, role models.Role) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
)
