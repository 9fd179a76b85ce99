package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionType string

const (
	SessionPersonalTraining      SessionType = "personal_training"
	SessionGroupClass            SessionType = "group_class"
	SessionFitnessAssessment     SessionType = "fitness_assessment"
	SessionNutritionConsultation SessionType = "nutrition_consultation"
)

func (s SessionType) Valid() bool {
	switch s {
	case SessionPersonalTraining, SessionGroupClass, SessionFitnessAssessment, SessionNutritionConsultation:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID               string          `gorm:"primaryKey;size:64;not null"`
	UserID           string          `gorm:"size:64;index;not null"`
	ClerkID          string          `gorm:"size:64"`
	TrainerID        string          `gorm:"size:64;index;not null"`
	SessionType      SessionType     `gorm:"size:32;not null"`
	SessionDate      string          `gorm:"size:16;not null"` // YYYY-MM-DD
	StartTime        string          `gorm:"size:8;not null"`  // HH:MM
	Duration         int             `gorm:"not null"`         // minutes
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency         string          `gorm:"size:8"`
	PaymentSessionID string          `gorm:"size:128;uniqueIndex;not null"`
	Status           BookingStatus   `gorm:"size:16;not null"`
	PaymentStatus    PaymentStatus   `gorm:"size:16;not null"`
	Notes            string          `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
