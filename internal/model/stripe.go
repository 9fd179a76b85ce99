package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
)

// Provider event types the reconciler understands.
const (
	EventSubscriptionCreated     = string(stripe.EventTypeCustomerSubscriptionCreated)
	EventSubscriptionUpdated     = string(stripe.EventTypeCustomerSubscriptionUpdated)
	EventSubscriptionDeleted     = string(stripe.EventTypeCustomerSubscriptionDeleted)
	EventCheckoutCompleted       = string(stripe.EventTypeCheckoutSessionCompleted)
	EventInvoicePaymentSucceeded = string(stripe.EventTypeInvoicePaymentSucceeded)
	EventInvoicePaymentFailed    = string(stripe.EventTypeInvoicePaymentFailed)
)

const (
	CheckoutModeSubscription = string(stripe.CheckoutSessionModeSubscription)
	CheckoutModePayment      = string(stripe.CheckoutSessionModePayment)

	CheckoutPaymentStatusPaid = string(stripe.CheckoutSessionPaymentStatusPaid)
)

// Checkout metadata discriminators carried in metadata["type"].
const (
	CheckoutTypeMarketplaceOrder = "marketplace_order"
	CheckoutTypeBooking          = "booking"
)

// ExpandableID accepts either a bare object id or an expanded object with an "id" field.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expandable id: %w", err)
	}
	*e = ExpandableID(obj.ID)
	return nil
}

// WebhookEnvelope is the outer shape of every provider event.
type WebhookEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type StripePrice struct {
	ID      string       `json:"id"`
	Product ExpandableID `json:"product"`
}

type StripeSubscriptionItem struct {
	ID                 string      `json:"id"`
	Price              StripePrice `json:"price"`
	CurrentPeriodStart *int64      `json:"current_period_start"`
	CurrentPeriodEnd   *int64      `json:"current_period_end"`
}

type StripeSubscription struct {
	ID                 string       `json:"id"`
	Customer           ExpandableID `json:"customer"`
	Status             string       `json:"status"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	CurrentPeriodStart *int64       `json:"current_period_start"`
	CurrentPeriodEnd   *int64       `json:"current_period_end"`
	StartDate          int64        `json:"start_date"`
	Created            int64        `json:"created"`
	Items              struct {
		Data []StripeSubscriptionItem `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// FirstItem returns the first subscription item, if any.
func (s *StripeSubscription) FirstItem() *StripeSubscriptionItem {
	if len(s.Items.Data) == 0 {
		return nil
	}
	return &s.Items.Data[0]
}

type StripeCheckoutSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	PaymentStatus string            `json:"payment_status"`
	Customer      ExpandableID      `json:"customer"`
	Subscription  ExpandableID      `json:"subscription"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type StripeInvoice struct {
	ID           string       `json:"id"`
	Customer     ExpandableID `json:"customer"`
	Subscription ExpandableID `json:"subscription"`
	// Newer API versions move the subscription reference under parent.
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	PeriodStart int64  `json:"period_start"`
	PeriodEnd   int64  `json:"period_end"`
	AmountPaid  int64  `json:"amount_paid"`
	Currency    string `json:"currency"`
}

// SubscriptionID resolves the subscription reference across API versions.
func (i *StripeInvoice) SubscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return string(i.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}
