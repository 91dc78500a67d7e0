package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when an API key cannot be matched.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
