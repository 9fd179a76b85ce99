package service

import (
	"context"
	"gym-billing-reconciler/internal/model"
)

func (s *webhookServiceImpl) handleInvoicePaymentSucceeded(ctx context.Context, ev InvoiceEvent) Outcome {
	subscriptionID := ev.Invoice.SubscriptionID()
	if subscriptionID == "" {
		return Skipped("invoice not linked to a subscription")
	}

	fields := map[string]interface{}{
		"status": model.MembershipActive,
	}
	if ev.Invoice.PeriodStart > 0 && ev.Invoice.PeriodEnd >= ev.Invoice.PeriodStart {
		fields["current_period_start"] = ev.Invoice.PeriodStart * 1000
		fields["current_period_end"] = ev.Invoice.PeriodEnd * 1000
	}

	return s.patchMembership(ctx, subscriptionID, fields)
}

func (s *webhookServiceImpl) handleInvoicePaymentFailed(ctx context.Context, ev InvoiceEvent) Outcome {
	subscriptionID := ev.Invoice.SubscriptionID()
	if subscriptionID == "" {
		return Skipped("invoice not linked to a subscription")
	}

	return s.patchMembership(ctx, subscriptionID, map[string]interface{}{
		"status": model.MembershipPending,
	})
}
