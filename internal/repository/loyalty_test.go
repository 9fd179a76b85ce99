package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoyaltyAward(t *testing.T) {
	ctx := context.Background()
	repo := NewLoyaltyRepository(newTestDB(t))

	created, err := repo.Award(ctx, "u-1", 57, "marketplace_order", "order-1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Award(ctx, "u-1", 57, "marketplace_order", "order-1")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.Award(ctx, "u-1", 10, "marketplace_order", "order-2")
	require.NoError(t, err)

	balance, err := repo.Balance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(67), balance)

	empty, err := repo.Balance(ctx, "u-2")
	require.NoError(t, err)
	assert.Zero(t, empty)
}
