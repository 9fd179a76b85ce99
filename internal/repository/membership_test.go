package repository

import (
	"context"
	"gym-billing-reconciler/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMembership(id, userID, subID string, periodEnd int64) *model.Membership {
	return &model.Membership{
		ID:                   id,
		UserID:               userID,
		ClerkID:              "clerk_" + userID,
		StripeCustomerID:     "cus_" + userID,
		StripeSubscriptionID: subID,
		MembershipType:       model.MembershipTypeNoLockIn,
		Status:               model.MembershipActive,
		CurrentPeriodStart:   periodEnd - 1000,
		CurrentPeriodEnd:     periodEnd,
	}
}

func TestMembershipUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMembershipRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, newMembership("m-1", "u-1", "sub_1", 5000)))

	replacement := newMembership("m-2", "u-1", "sub_1", 9000)
	replacement.MembershipType = model.MembershipTypePremium
	require.NoError(t, repo.Upsert(ctx, replacement))

	stored, err := repo.GetBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", stored.ID)
	assert.Equal(t, model.MembershipTypePremium, stored.MembershipType)
	assert.Equal(t, int64(9000), stored.CurrentPeriodEnd)
}

func TestMembershipPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMembershipRepository(newTestDB(t))
	require.NoError(t, repo.Upsert(ctx, newMembership("m-1", "u-1", "sub_1", 5000)))

	t.Run("merges only given fields", func(t *testing.T) {
		fields := map[string]interface{}{
			"status":               model.MembershipPending,
			"cancel_at_period_end": true,
		}
		err := repo.PatchBySubscriptionID(ctx, "sub_1", fields)
		require.NoError(t, err)
		assert.Len(t, fields, 2, "caller's map is left untouched")

		stored, err := repo.GetBySubscriptionID(ctx, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, model.MembershipPending, stored.Status)
		assert.True(t, stored.CancelAtPeriodEnd)
		assert.Equal(t, int64(5000), stored.CurrentPeriodEnd)
		assert.Equal(t, model.MembershipTypeNoLockIn, stored.MembershipType)
	})

	t.Run("missing membership", func(t *testing.T) {
		err := repo.PatchBySubscriptionID(ctx, "sub_missing", map[string]interface{}{"status": model.MembershipCancelled})
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestMembershipFixDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewMembershipRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, newMembership("m-old", "u-1", "sub_old", 1000)))
	require.NoError(t, repo.Upsert(ctx, newMembership("m-new", "u-1", "sub_new", 9000)))
	require.NoError(t, repo.Upsert(ctx, newMembership("m-mid", "u-1", "sub_mid", 5000)))
	require.NoError(t, repo.Upsert(ctx, newMembership("m-solo", "u-2", "sub_solo", 3000)))

	cancelled := newMembership("m-cancelled", "u-1", "sub_cancelled", 99000)
	cancelled.Status = model.MembershipCancelled
	require.NoError(t, repo.Upsert(ctx, cancelled))

	flagged, err := repo.FixDuplicates(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(flagged))
	for _, m := range flagged {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{"m-old", "m-mid"}, ids)

	kept, err := repo.GetBySubscriptionID(ctx, "sub_new")
	require.NoError(t, err)
	assert.False(t, kept.IsDuplicate)

	old, err := repo.GetBySubscriptionID(ctx, "sub_old")
	require.NoError(t, err)
	assert.True(t, old.IsDuplicate)

	again, err := repo.FixDuplicates(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
