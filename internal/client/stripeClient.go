package client

import (
	"context"
	"fmt"
	"gym-billing-reconciler/internal/config"

	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
)

type StripeClient interface {
	// ListCheckoutSessions returns at most limit sessions for the customer, newest first.
	ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]CheckoutSessionSummary, error)
	GetCustomerMetadata(ctx context.Context, customerID string) (map[string]string, error)
	UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error
}

type CheckoutSessionSummary struct {
	ID       string
	Metadata map[string]string
}

type stripeClientImpl struct {
	api *stripeclient.API
}

func NewStripeClient(stripeCfg *config.Stripe) StripeClient {
	return &stripeClientImpl{
		api: stripeclient.New(stripeCfg.SecretKey, nil),
	}
}

func (c *stripeClientImpl) ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]CheckoutSessionSummary, error) {
	params := &stripe.CheckoutSessionListParams{
		ListParams: stripe.ListParams{
			Context: ctx,
			Limit:   stripe.Int64(int64(limit)),
		},
		Customer: stripe.String(customerID),
	}

	var sessions []CheckoutSessionSummary
	i := c.api.CheckoutSessions.List(params)
	for i.Next() {
		s := i.CheckoutSession()
		sessions = append(sessions, CheckoutSessionSummary{ID: s.ID, Metadata: s.Metadata})
		if len(sessions) >= limit {
			break
		}
	}
	if err := i.Err(); err != nil {
		return nil, fmt.Errorf("stripe list checkout sessions: %w", err)
	}

	return sessions, nil
}

func (c *stripeClientImpl) GetCustomerMetadata(ctx context.Context, customerID string) (map[string]string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get customer: %w", err)
	}
	if cus.Metadata == nil {
		return map[string]string{}, nil
	}

	return cus.Metadata, nil
}

func (c *stripeClientImpl) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	if _, err := c.api.Customers.Update(customerID, params); err != nil {
		return fmt.Errorf("stripe update customer: %w", err)
	}

	return nil
}
