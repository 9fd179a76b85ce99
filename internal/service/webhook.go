package service

import (
	"context"
	"errors"
	"fmt"
	"gym-billing-reconciler/internal/client"
	"gym-billing-reconciler/internal/metrics"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/notifier"
	"gym-billing-reconciler/internal/repository"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type WebhookService interface {
	// HandleWebhook verifies, deduplicates and reconciles one delivery. A non-nil error is an
	// *IntakeError: the delivery was rejected before the ledger saw it.
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) (Outcome, error)
}

type WebhookOptions struct {
	SessionLookupLimit      int
	UntypedPaymentAsBooking bool
}

type eventHandler func(ctx context.Context, ev Event) Outcome

type webhookServiceImpl struct {
	intake       EventIntake
	ledger       Ledger
	stripeClient client.StripeClient
	userRepo     repository.UserRepository
	memberRepo   repository.MembershipRepository
	orderRepo    repository.OrderRepository
	bookingRepo  repository.BookingRepository
	loyaltyRepo  repository.LoyaltyRepository
	notifier     notifier.Notifier
	effects      EffectDispatcher
	plans        *PlanResolver
	opts         WebhookOptions
	log          *zap.Logger
	now          func() time.Time

	routes map[string]eventHandler
}

func NewWebhookService(
	intake EventIntake,
	ledger Ledger,
	stripeClient client.StripeClient,
	userRepo repository.UserRepository,
	memberRepo repository.MembershipRepository,
	orderRepo repository.OrderRepository,
	bookingRepo repository.BookingRepository,
	loyaltyRepo repository.LoyaltyRepository,
	notif notifier.Notifier,
	effects EffectDispatcher,
	plans *PlanResolver,
	opts WebhookOptions,
	log *zap.Logger,
) WebhookService {
	s := &webhookServiceImpl{
		intake:       intake,
		ledger:       ledger,
		stripeClient: stripeClient,
		userRepo:     userRepo,
		memberRepo:   memberRepo,
		orderRepo:    orderRepo,
		bookingRepo:  bookingRepo,
		loyaltyRepo:  loyaltyRepo,
		notifier:     notif,
		effects:      effects,
		plans:        plans,
		opts:         opts,
		log:          log.Named("webhook"),
		now:          time.Now,
	}

	s.routes = map[string]eventHandler{
		model.EventSubscriptionCreated:     route(s.handleSubscriptionCreated),
		model.EventSubscriptionUpdated:     route(s.handleSubscriptionUpdated),
		model.EventSubscriptionDeleted:     route(s.handleSubscriptionDeleted),
		model.EventCheckoutCompleted:       route(s.handleCheckoutCompleted),
		model.EventInvoicePaymentSucceeded: route(s.handleInvoicePaymentSucceeded),
		model.EventInvoicePaymentFailed:    route(s.handleInvoicePaymentFailed),
	}

	return s
}

func route[T Event](fn func(context.Context, T) Outcome) eventHandler {
	return func(ctx context.Context, ev Event) Outcome {
		typed, ok := ev.(T)
		if !ok {
			return Skipped(fmt.Sprintf("unexpected payload %T", ev))
		}
		return fn(ctx, typed)
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (Outcome, error) {
	event, err := s.intake.Parse(headers, body)
	if err != nil {
		reason := "invalid"
		var intakeErr *IntakeError
		if errors.As(err, &intakeErr) && intakeErr.Status >= http.StatusInternalServerError {
			reason = "misconfigured"
			s.log.Error("webhook rejected", zap.Error(err))
		}
		metrics.WebhookRejectedTotal.WithLabelValues(reason).Inc()
		return Outcome{}, err
	}

	meta := event.Meta()
	log := s.log.With(
		zap.String("event_id", meta.ID),
		zap.String("event_type", meta.Type),
		zap.Bool("verified", meta.Verified),
	)
	start := s.now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues(meta.Type).Observe(time.Since(start).Seconds())
	}()

	outcome := s.process(ctx, event, log)

	metrics.WebhookEventsTotal.WithLabelValues(meta.Type, outcome.Kind.String()).Inc()
	switch outcome.Kind {
	case OutcomeApplied:
		log.Info("webhook event applied")
	case OutcomeSkipped:
		log.Info("webhook event skipped", zap.String("reason", outcome.Reason))
	case OutcomeFailed:
		log.Error("webhook event failed", zap.Error(outcome.Err))
	}

	return outcome, nil
}

// process runs to completion once the event is claimed, even if the caller goes away.
func (s *webhookServiceImpl) process(ctx context.Context, event Event, log *zap.Logger) Outcome {
	ctx = context.WithoutCancel(ctx)
	meta := event.Meta()

	already, err := s.ledger.BeginProcessing(ctx, meta.ID, meta.Type)
	if err != nil {
		return Failed(fmt.Errorf("begin processing: %w", err))
	}
	if already {
		return Skipped("already processed")
	}

	outcome := s.dispatch(ctx, event, log)

	var errMsg string
	if outcome.Kind == OutcomeFailed {
		errMsg = outcome.Err.Error()
	}
	if err := s.ledger.Finalize(ctx, meta.ID, outcome.Kind != OutcomeFailed, errMsg); err != nil {
		if outcome.Kind == OutcomeFailed {
			log.Error("finalize failed event", zap.Error(err))
			return outcome
		}
		return Failed(fmt.Errorf("finalize: %w", err))
	}

	return outcome
}

func (s *webhookServiceImpl) dispatch(ctx context.Context, event Event, log *zap.Logger) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Failed(fmt.Errorf("handler panic: %v", r))
		}
	}()

	handler, ok := s.routes[event.Meta().Type]
	if !ok {
		log.Info("unhandled webhook event type")
		return Skipped("unhandled event type")
	}

	return handler(ctx, event)
}
