package repository

import (
	"context"
	"gym-billing-reconciler/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClaimResult int

const (
	// ClaimAcquired means this delivery owns the event and must process it.
	ClaimAcquired ClaimResult = iota
	ClaimAlreadyProcessed
	// ClaimInFlight means another delivery holds a live processing lease.
	ClaimInFlight
)

type WebhookEventRepository interface {
	Claim(ctx context.Context, eventID, eventType string, now time.Time, lease time.Duration) (ClaimResult, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, errMsg string) error
	Get(ctx context.Context, eventID string) (*model.WebhookEvent, error)
	ListFailed(ctx context.Context, limit int) ([]model.WebhookEvent, error)
}

type webhookEventRepositoryIml struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryIml{db: db}
}

func (r *webhookEventRepositoryIml) Claim(ctx context.Context, eventID, eventType string, now time.Time, lease time.Duration) (ClaimResult, error) {
	nowMs := now.UnixMilli()

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WebhookEvent{
			EventID:   eventID,
			EventType: eventType,
			Status:    model.WebhookEventProcessing,
			Attempts:  1,
			LockedAt:  nowMs,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 1 {
		return ClaimAcquired, nil
	}

	// Row exists: take it over only if a previous attempt failed or its lease ran out.
	result = r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where(`
			event_id = ?
			AND processed = ?
			AND (status = ? OR (status = ? AND locked_at < ?))
		`,
			eventID,
			false,
			model.WebhookEventFailed,
			model.WebhookEventProcessing,
			nowMs-lease.Milliseconds(),
		).
		Updates(map[string]interface{}{
			"status":     model.WebhookEventProcessing,
			"locked_at":  nowMs,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 1 {
		return ClaimAcquired, nil
	}

	existing, err := r.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if existing.Processed {
		return ClaimAlreadyProcessed, nil
	}

	return ClaimInFlight, nil
}

func (r *webhookEventRepositoryIml) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.WebhookEventDone,
			"processed":    true,
			"error":        "",
			"locked_at":    0,
			"processed_at": &now,
			"updated_at":   now,
		}).Error
}

func (r *webhookEventRepositoryIml) MarkFailed(ctx context.Context, eventID string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ? AND processed = ?", eventID, false).
		Updates(map[string]interface{}{
			"status":     model.WebhookEventFailed,
			"error":      errMsg,
			"locked_at":  0,
			"updated_at": time.Now(),
		}).Error
}

func (r *webhookEventRepositoryIml) Get(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *webhookEventRepositoryIml) ListFailed(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	var events []model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WebhookEventFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&events).Error

	if err != nil {
		return nil, err
	}

	return events, nil
}
