package repository

import (
	"context"
	"gym-billing-reconciler/internal/model"
	"maps"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository interface {
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Membership, error)
	// Upsert creates the membership or replaces the stored one with the same subscription ID.
	Upsert(ctx context.Context, membership *model.Membership) error
	// PatchBySubscriptionID merges fields into the stored membership; gorm.ErrRecordNotFound if absent.
	PatchBySubscriptionID(ctx context.Context, subscriptionID string, fields map[string]interface{}) error
	FixDuplicates(ctx context.Context) ([]model.Membership, error)
}

type membershipRepoImpl struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepoImpl{
		db: db,
	}
}

func (r *membershipRepoImpl) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&membership).
		Error

	if err != nil {
		return nil, err
	}

	return &membership, nil
}

func (r *membershipRepoImpl) Upsert(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id",
				"clerk_id",
				"stripe_customer_id",
				"stripe_price_id",
				"membership_type",
				"status",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"last_event_at",
				"updated_at",
			}),
		}).
		Create(membership).
		Error
}

func (r *membershipRepoImpl) PatchBySubscriptionID(ctx context.Context, subscriptionID string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership model.Membership
		if err := tx.Where("stripe_subscription_id = ?", subscriptionID).First(&membership).Error; err != nil {
			return err
		}

		updates := maps.Clone(fields)
		updates["updated_at"] = time.Now()
		return tx.Model(&membership).Updates(updates).Error
	})
}

// FixDuplicates keeps, per user, the active membership with the latest period end and
// flags the other active ones as duplicates. It returns the flagged memberships.
func (r *membershipRepoImpl) FixDuplicates(ctx context.Context) ([]model.Membership, error) {
	var flagged []model.Membership

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []model.Membership
		err := tx.
			Where("status = ? AND is_duplicate = ?", model.MembershipActive, false).
			Order("user_id ASC, current_period_end DESC, updated_at DESC").
			Find(&active).Error
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(active))
		var ids []string
		for _, m := range active {
			if !seen[m.UserID] {
				seen[m.UserID] = true
				continue
			}
			m.IsDuplicate = true
			flagged = append(flagged, m)
			ids = append(ids, m.ID)
		}
		if len(ids) == 0 {
			return nil
		}

		return tx.Model(&model.Membership{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"is_duplicate": true,
				"updated_at":   time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return flagged, nil
}
