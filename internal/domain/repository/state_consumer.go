package repository

import (
	"context"
	"time"
)

// StateConsumer tracks consumed authorization-state nonces for the state TTL
// window so a callback URL cannot be replayed while its signature is still
// valid. Consume is an atomic check-and-set: the first caller for a nonce
// wins, every later caller gets errors.ErrOAuthStateAlreadyUsed.
type StateConsumer interface {
	Consume(ctx context.Context, nonce string, ttl time.Duration) error
}
