package dto

import "time"

type FailedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FailedEventsResponse struct {
	Events []FailedEvent `json:"events"`
	Count  int           `json:"count"`
}

type DuplicateMembership struct {
	MembershipID   string `json:"membership_id"`
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
}

type FixDuplicatesResponse struct {
	Flagged []DuplicateMembership `json:"flagged"`
	Count   int                   `json:"count"`
}
