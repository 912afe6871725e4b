package memory

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/repository"
)

// StateConsumer is an in-process consumed-state tracker for single-instance
// deployments. Entries expire with the state TTL; expired entries are swept
// opportunistically on Consume so no background goroutine is needed.
type StateConsumer struct {
	mu        sync.Mutex
	consumed  map[string]time.Time // nonce -> expiry
	lastSweep time.Time
	now       func() time.Time
}

// NewStateConsumer creates an in-memory consumed-state tracker.
func NewStateConsumer() *StateConsumer {
	return &StateConsumer{
		consumed: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Consume marks nonce as used for ttl. The first caller wins; later callers
// for the same nonce get ErrOAuthStateAlreadyUsed until the entry expires.
func (c *StateConsumer) Consume(_ context.Context, nonce string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	if expiry, ok := c.consumed[nonce]; ok && now.Before(expiry) {
		return domainErrors.ErrOAuthStateAlreadyUsed
	}
	c.consumed[nonce] = now.Add(ttl)
	return nil
}

// sweepLocked drops expired entries at most once per minute.
func (c *StateConsumer) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < time.Minute {
		return
	}
	c.lastSweep = now
	for nonce, expiry := range c.consumed {
		if !now.Before(expiry) {
			delete(c.consumed, nonce)
		}
	}
}

var _ repository.StateConsumer = (*StateConsumer)(nil)
