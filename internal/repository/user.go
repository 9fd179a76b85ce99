package repository

import (
	"context"
	"gym-billing-reconciler/internal/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	FindByClerkID(ctx context.Context, clerkID string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// Upsert stores the identity payload keyed by clerk ID and returns the stored user.
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) FindByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("clerk_id = ?", clerkID).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "clerk_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"email":      user.Email,
			"name":       user.Name,
			"role":       user.Role,
			"updated_at": time.Now(),
		}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}

	return r.FindByClerkID(ctx, user.ClerkID)
}
