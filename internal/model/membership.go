package model

import "time"

type MembershipType string

const (
	MembershipTypeIntro       MembershipType = "intro"
	MembershipTypeNoLockIn    MembershipType = "no-lock-in"
	MembershipTypeTwelveMonth MembershipType = "12-month"
	MembershipTypePremium     MembershipType = "premium"
)

func (t MembershipType) Valid() bool {
	switch t {
	case MembershipTypeIntro, MembershipTypeNoLockIn, MembershipTypeTwelveMonth, MembershipTypePremium:
		return true
	}
	return false
}

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipCancelled MembershipStatus = "cancelled"
	MembershipPending   MembershipStatus = "pending"
	MembershipExpired   MembershipStatus = "expired"
)

type Membership struct {
	ID                   string           `gorm:"primaryKey;size:64;not null"`
	UserID               string           `gorm:"size:64;index;not null"`
	ClerkID              string           `gorm:"size:64;index"`
	StripeCustomerID     string           `gorm:"size:64;index"`
	StripeSubscriptionID string           `gorm:"size:64;uniqueIndex;not null"`
	StripePriceID        string           `gorm:"size:64"`
	MembershipType       MembershipType   `gorm:"size:32;not null"`
	Status               MembershipStatus `gorm:"size:16;index;not null"`
	CurrentPeriodStart   int64            // unix millis
	CurrentPeriodEnd     int64            // unix millis
	CancelAtPeriodEnd    bool             `gorm:"not null;default:false"`
	IsDuplicate          bool             `gorm:"not null;default:false"`
	LastEventAt          int64            // provider event created, unix seconds
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
