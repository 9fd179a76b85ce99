package service

import (
	"context"
	"errors"
	"fmt"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/notifier"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const fallbackPeriod = 30 * 24 * time.Hour

const (
	metadataClerkID        = "clerkId"
	metadataMembershipType = "membershipType"
)

type subscriberSource string

const (
	subscriberFromSession  subscriberSource = "checkout_session"
	subscriberFromCustomer subscriberSource = "customer_metadata"
)

type subscriber struct {
	clerkID        string
	membershipType string
	source         subscriberSource
}

func (s *webhookServiceImpl) handleSubscriptionCreated(ctx context.Context, ev SubscriptionEvent) Outcome {
	sub := ev.Subscription
	customerID := string(sub.Customer)
	if sub.ID == "" || customerID == "" {
		return Skipped("subscription without id or customer")
	}

	existing, err := s.memberRepo.GetBySubscriptionID(ctx, sub.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Failed(fmt.Errorf("get membership %s: %w", sub.ID, err))
	}
	if existing != nil && isStale(ev.Created, existing.LastEventAt) {
		return Skipped("stale subscription event")
	}

	who, err := s.resolveSubscriber(ctx, customerID)
	if err != nil {
		return Failed(err)
	}
	if who == nil {
		return Skipped("no clerkId found for customer " + customerID)
	}

	user, err := s.userRepo.FindByClerkID(ctx, who.clerkID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Skipped("user not provisioned for clerkId " + who.clerkID)
	}
	if err != nil {
		return Failed(fmt.Errorf("find user %s: %w", who.clerkID, err))
	}

	var priceID, productID string
	if item := sub.FirstItem(); item != nil {
		priceID = item.Price.ID
		productID = string(item.Price.Product)
	}

	start, end := subscriptionPeriod(sub, ev.Created, s.now())

	membership := &model.Membership{
		ID:                   uuid.NewString(),
		UserID:               user.ID,
		ClerkID:              who.clerkID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID,
		MembershipType:       s.plans.Resolve(who.membershipType, productID),
		Status:               model.MembershipActive,
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		LastEventAt:          ev.Created,
	}
	if existing != nil {
		membership.ID = existing.ID
	}
	if err := s.memberRepo.Upsert(ctx, membership); err != nil {
		return Failed(fmt.Errorf("upsert membership %s: %w", sub.ID, err))
	}

	s.effects.Fire(ctx, "membership_welcome", func(ctx context.Context) error {
		return s.notifier.Notify(ctx, notifier.TemplateMembershipWelcome, map[string]string{
			"userId":         user.ID,
			"email":          user.Email,
			"name":           user.Name,
			"membershipType": string(membership.MembershipType),
		})
	})
	if who.source == subscriberFromSession {
		s.effects.Fire(ctx, "customer_metadata_backfill", func(ctx context.Context) error {
			return s.stripeClient.UpdateCustomerMetadata(ctx, customerID, map[string]string{
				metadataClerkID: who.clerkID,
			})
		})
	}

	return Applied()
}

// resolveSubscriber finds the clerkId for a customer: the first recent checkout session carrying
// one wins, then the customer's own metadata. A nil result means nobody could be identified.
func (s *webhookServiceImpl) resolveSubscriber(ctx context.Context, customerID string) (*subscriber, error) {
	sessions, err := s.stripeClient.ListCheckoutSessions(ctx, customerID, s.opts.SessionLookupLimit)
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions for %s: %w", customerID, err)
	}
	for _, cs := range sessions {
		if clerkID := cs.Metadata[metadataClerkID]; clerkID != "" {
			return &subscriber{
				clerkID:        clerkID,
				membershipType: cs.Metadata[metadataMembershipType],
				source:         subscriberFromSession,
			}, nil
		}
	}

	md, err := s.stripeClient.GetCustomerMetadata(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", customerID, err)
	}
	if clerkID := md[metadataClerkID]; clerkID != "" {
		return &subscriber{
			clerkID:        clerkID,
			membershipType: md[metadataMembershipType],
			source:         subscriberFromCustomer,
		}, nil
	}

	return nil, nil
}

func (s *webhookServiceImpl) handleSubscriptionUpdated(ctx context.Context, ev SubscriptionEvent) Outcome {
	sub := ev.Subscription

	existing, err := s.memberRepo.GetBySubscriptionID(ctx, sub.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Skipped("no membership for subscription " + sub.ID)
	}
	if err != nil {
		return Failed(fmt.Errorf("get membership %s: %w", sub.ID, err))
	}
	if isStale(ev.Created, existing.LastEventAt) {
		s.log.Warn("stale subscription update ignored",
			zap.String("subscription_id", sub.ID),
			zap.Int64("event_created", ev.Created),
			zap.Int64("last_event_at", existing.LastEventAt),
		)
		return Skipped("stale subscription event")
	}

	status := model.MembershipCancelled
	if sub.Status == "active" {
		status = model.MembershipActive
	}
	fields := map[string]interface{}{
		"status":               status,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	}
	if start, end, ok := providerPeriod(sub); ok {
		fields["current_period_start"] = start
		fields["current_period_end"] = end
	}
	if item := sub.FirstItem(); item != nil && item.Price.ID != "" {
		fields["stripe_price_id"] = item.Price.ID
	}
	if ev.Created > existing.LastEventAt {
		fields["last_event_at"] = ev.Created
	}

	return s.patchMembership(ctx, sub.ID, fields)
}

func (s *webhookServiceImpl) handleSubscriptionDeleted(ctx context.Context, ev SubscriptionEvent) Outcome {
	return s.patchMembership(ctx, ev.Subscription.ID, map[string]interface{}{
		"status": model.MembershipCancelled,
	})
}

func (s *webhookServiceImpl) patchMembership(ctx context.Context, subscriptionID string, fields map[string]interface{}) Outcome {
	if subscriptionID == "" {
		return Skipped("missing subscription id")
	}

	err := s.memberRepo.PatchBySubscriptionID(ctx, subscriptionID, fields)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Skipped("no membership for subscription " + subscriptionID)
	}
	if err != nil {
		return Failed(fmt.Errorf("patch membership %s: %w", subscriptionID, err))
	}

	return Applied()
}

// isStale reports whether an event created at eventCreated predates the last applied one.
func isStale(eventCreated, lastEventAt int64) bool {
	return eventCreated > 0 && lastEventAt > 0 && eventCreated < lastEventAt
}

// providerPeriod returns the billing period in unix millis when the provider supplied both
// bounds, at the subscription level or on its first item.
func providerPeriod(sub model.StripeSubscription) (start, end int64, ok bool) {
	if start, end, ok := wellFormedPeriod(sub.CurrentPeriodStart, sub.CurrentPeriodEnd); ok {
		return start, end, true
	}
	if item := sub.FirstItem(); item != nil {
		return wellFormedPeriod(item.CurrentPeriodStart, item.CurrentPeriodEnd)
	}
	return 0, 0, false
}

func wellFormedPeriod(start, end *int64) (int64, int64, bool) {
	if start == nil || end == nil || *start <= 0 || *end < *start {
		return 0, 0, false
	}
	return *start * 1000, *end * 1000, true
}

// subscriptionPeriod falls back to a 30-day period from max(start_date, created) when the
// provider sent no usable bounds.
func subscriptionPeriod(sub model.StripeSubscription, eventCreated int64, now time.Time) (int64, int64) {
	if start, end, ok := providerPeriod(sub); ok {
		return start, end
	}

	base := max(sub.StartDate, sub.Created)
	if base <= 0 {
		base = eventCreated
	}
	startMs := base * 1000
	if base <= 0 {
		startMs = now.UnixMilli()
	}

	return startMs, startMs + fallbackPeriod.Milliseconds()
}
