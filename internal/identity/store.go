// Package identity is the auth backend: credentials, sessions backed by JWT access tokens,
// token refresh and session-change events.
package identity

import (
	"context"
	"errors"
	"time"

	"stockroom/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("email and password required")
	ErrInvalidSession     = errors.New("invalid session")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
)

// Store persists credentials and sessions. GormStore backs production; MemoryStore
// serves tests and single-process demos.
type Store interface {
	CreateCredential(ctx context.Context, c *models.Credential) error
	CredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	CredentialByID(ctx context.Context, id string) (*models.Credential, error)
	CreateSession(ctx context.Context, s *models.Session) error
	SessionByJTI(ctx context.Context, jti string) (*models.Session, error)
	RevokeSession(ctx context.Context, jti string, at time.Time) error
}
