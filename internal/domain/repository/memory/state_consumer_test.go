package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

func TestStateConsumer_FirstWins(t *testing.T) {
	c := NewStateConsumer()
	ctx := context.Background()

	require.NoError(t, c.Consume(ctx, "nonce-1", time.Minute))
	assert.ErrorIs(t, c.Consume(ctx, "nonce-1", time.Minute), domainErrors.ErrOAuthStateAlreadyUsed)
	require.NoError(t, c.Consume(ctx, "nonce-2", time.Minute))
}

func TestStateConsumer_EntryExpires(t *testing.T) {
	c := NewStateConsumer()
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }
	require.NoError(t, c.Consume(ctx, "nonce-1", time.Minute))

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	assert.ErrorIs(t, c.Consume(ctx, "nonce-1", time.Minute), domainErrors.ErrOAuthStateAlreadyUsed)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.NoError(t, c.Consume(ctx, "nonce-1", time.Minute))
}

func TestStateConsumer_SweepDropsExpired(t *testing.T) {
	c := NewStateConsumer()
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }
	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, c.Consume(ctx, n, time.Second))
	}

	// Past both the entry TTLs and the sweep interval.
	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.NoError(t, c.Consume(ctx, "d", time.Minute))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.consumed, 1)
}

func TestStateConsumer_ConcurrentSingleWinner(t *testing.T) {
	c := NewStateConsumer()
	ctx := context.Background()

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Consume(ctx, "contested", time.Minute) == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
