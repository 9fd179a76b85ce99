package repository

import (
	"context"
	"errors"
	"gym-billing-reconciler/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository interface {
	// CreateIfAbsent inserts the booking unless one already exists for its payment session.
	// The stored booking is returned either way, with created reporting which case applied.
	CreateIfAbsent(ctx context.Context, booking *model.Booking) (stored *model.Booking, created bool, err error)
	FindByPaymentSessionID(ctx context.Context, sessionID string) (*model.Booking, error)
}

type bookingRepoImpl struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepoImpl{
		db: db,
	}
}

func (r *bookingRepoImpl) CreateIfAbsent(ctx context.Context, booking *model.Booking) (*model.Booking, bool, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_session_id"}},
		DoNothing: true,
	}).Create(booking)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return booking, true, nil
	}

	existing, err := r.FindByPaymentSessionID(ctx, booking.PaymentSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, errors.New("booking insert ignored but no row found")
		}
		return nil, false, err
	}

	return existing, false, nil
}

func (r *bookingRepoImpl) FindByPaymentSessionID(ctx context.Context, sessionID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Where("payment_session_id = ?", sessionID).
		First(&booking).Error

	if err != nil {
		return nil, err
	}

	return &booking, nil
}
