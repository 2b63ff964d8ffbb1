// Package auth resolves the caller identity behind an Authorization bearer token.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("authorization header required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
