package model

import "time"

type WebhookEventStatus string

const (
	WebhookEventProcessing WebhookEventStatus = "processing"
	WebhookEventDone       WebhookEventStatus = "done"
	WebhookEventFailed     WebhookEventStatus = "failed"
)

// WebhookEvent is the idempotency ledger record for one provider event.
type WebhookEvent struct {
	EventID     string             `gorm:"primaryKey;size:128;not null"`
	EventType   string             `gorm:"size:64;index"`
	Status      WebhookEventStatus `gorm:"size:16;index;not null"`
	Processed   bool               `gorm:"not null;default:false"`
	Error       string             `gorm:"type:text"`
	Attempts    int                `gorm:"not null;default:0"`
	LockedAt    int64              `gorm:"not null;default:0"` // unix millis of the current processing lease
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is provisioned from identity-provider payloads ({id, email, name, role}).
type User struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	ClerkID   string `gorm:"size:64;uniqueIndex;not null"`
	Email     string `gorm:"size:255"`
	Name      string `gorm:"size:255"`
	Role      string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LoyaltyTransaction struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"size:64;not null;uniqueIndex:idx_loyalty_award"`
	Reason      string `gorm:"size:64;not null;uniqueIndex:idx_loyalty_award"`
	ReferenceID string `gorm:"size:128;not null;uniqueIndex:idx_loyalty_award"`
	Points      int64  `gorm:"not null"`
	CreatedAt   time.Time
}
