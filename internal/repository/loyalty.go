package repository

import (
	"context"
	"gym-billing-reconciler/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoyaltyRepository interface {
	// Award records points once per (user, reason, reference); it reports whether a row was written.
	Award(ctx context.Context, userID string, points int64, reason, referenceID string) (bool, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

type loyaltyRepoImpl struct {
	db *gorm.DB
}

func NewLoyaltyRepository(db *gorm.DB) LoyaltyRepository {
	return &loyaltyRepoImpl{
		db: db,
	}
}

func (r *loyaltyRepoImpl) Award(ctx context.Context, userID string, points int64, reason, referenceID string) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "reason"}, {Name: "reference_id"}},
		DoNothing: true,
	}).Create(&model.LoyaltyTransaction{
		UserID:      userID,
		Points:      points,
		Reason:      reason,
		ReferenceID: referenceID,
	})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *loyaltyRepoImpl) Balance(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.LoyaltyTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error

	return total, err
}
