package auth

import (
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// Strategy verifies bearer tokens carrying an actor identity.
// Tokens are minted by the auth service that shares the secret.
type Strategy interface {
	ParseToken(token string) (model.Actor, error)
	Name() string
}

type Options struct {
	// TTL caps how far in the future a token may expire.
	TTL time.Duration
	Now func() time.Time
}
