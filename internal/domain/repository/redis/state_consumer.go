package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/repository"
)

const stateKeyPrefix = "oauth:state:"

// StateConsumer marks authorization-state nonces as consumed in Redis. SETNX
// gives the required atomic check-and-set across processes; the key expires
// with the state TTL, after which the codec rejects the token anyway.
type StateConsumer struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStateConsumer creates a Redis-backed consumed-state tracker.
func NewStateConsumer(client *redis.Client, logger *zap.Logger) *StateConsumer {
	return &StateConsumer{
		client: client,
		logger: logger.Named("state_consumer"),
	}
}

// Consume marks nonce as used. The first caller wins; later callers for the
// same nonce get ErrOAuthStateAlreadyUsed.
func (c *StateConsumer) Consume(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := c.client.SetNX(ctx, stateKeyPrefix+nonce, "1", ttl).Result()
	if err != nil {
		c.logger.Error("Failed to mark oauth state as consumed", zap.Error(err))
		return fmt.Errorf("failed to mark oauth state as consumed: %w", err)
	}
	if !ok {
		return domainErrors.ErrOAuthStateAlreadyUsed
	}
	return nil
}

var _ repository.StateConsumer = (*StateConsumer)(nil)
