package service

import (
	"context"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/repository"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	mu     sync.Mutex
	keys   map[string]string
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{keys: map[string]string{}}
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	_, ok := c.keys[key]
	return ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.keys[key] = value
	return nil
}

type countingLedger struct {
	Ledger
	begins int
}

func (l *countingLedger) BeginProcessing(ctx context.Context, eventID, eventType string) (bool, error) {
	l.begins++
	return l.Ledger.BeginProcessing(ctx, eventID, eventType)
}

func TestLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWebhookEventRepository(newTestDB(t))
	ledger := NewLedger(repo, time.Minute)

	already, err := ledger.BeginProcessing(ctx, "evt_1", model.EventSubscriptionCreated)
	require.NoError(t, err)
	assert.False(t, already)

	_, err = ledger.BeginProcessing(ctx, "evt_1", model.EventSubscriptionCreated)
	assert.ErrorIs(t, err, ErrEventInFlight)

	require.NoError(t, ledger.Finalize(ctx, "evt_1", false, "boom"))
	already, err = ledger.BeginProcessing(ctx, "evt_1", model.EventSubscriptionCreated)
	require.NoError(t, err)
	assert.False(t, already, "failed events are reclaimed")

	require.NoError(t, ledger.Finalize(ctx, "evt_1", true, ""))
	already, err = ledger.BeginProcessing(ctx, "evt_1", model.EventSubscriptionCreated)
	require.NoError(t, err)
	assert.True(t, already)

	ev, err := repo.Get(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ev.Processed)
	assert.Equal(t, model.WebhookEventDone, ev.Status)
}

func TestCachedLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("processed events short-circuit from cache", func(t *testing.T) {
		inner := &countingLedger{Ledger: NewLedger(repository.NewWebhookEventRepository(newTestDB(t)), time.Minute)}
		cache := newFakeCache()
		ledger := NewCachedLedger(inner, cache, time.Hour, zap.NewNop())

		already, err := ledger.BeginProcessing(ctx, "evt_1", "x")
		require.NoError(t, err)
		assert.False(t, already)
		require.NoError(t, ledger.Finalize(ctx, "evt_1", true, ""))
		assert.Equal(t, "1", cache.keys["webhook:processed:evt_1"])

		already, err = ledger.BeginProcessing(ctx, "evt_1", "x")
		require.NoError(t, err)
		assert.True(t, already)
		assert.Equal(t, 1, inner.begins)
	})

	t.Run("failed events are not cached", func(t *testing.T) {
		inner := NewLedger(repository.NewWebhookEventRepository(newTestDB(t)), time.Minute)
		cache := newFakeCache()
		ledger := NewCachedLedger(inner, cache, time.Hour, zap.NewNop())

		_, err := ledger.BeginProcessing(ctx, "evt_1", "x")
		require.NoError(t, err)
		require.NoError(t, ledger.Finalize(ctx, "evt_1", false, "boom"))

		assert.Empty(t, cache.keys)
	})

	t.Run("cache errors fall back to the database", func(t *testing.T) {
		inner := &countingLedger{Ledger: NewLedger(repository.NewWebhookEventRepository(newTestDB(t)), time.Minute)}
		cache := newFakeCache()
		cache.getErr = errBoom
		cache.setErr = errBoom
		ledger := NewCachedLedger(inner, cache, time.Hour, zap.NewNop())

		_, err := ledger.BeginProcessing(ctx, "evt_1", "x")
		require.NoError(t, err)
		require.NoError(t, ledger.Finalize(ctx, "evt_1", true, ""))

		already, err := ledger.BeginProcessing(ctx, "evt_1", "x")
		require.NoError(t, err)
		assert.True(t, already)
		assert.Equal(t, 2, inner.begins)
	})
}
