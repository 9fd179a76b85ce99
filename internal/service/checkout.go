package service

import (
	"context"
	"errors"
	"fmt"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/notifier"
	"gym-billing-reconciler/internal/repository"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const loyaltyReasonOrder = "marketplace_order"

var requiredBookingFields = []string{"userId", "trainerId", "sessionType", "sessionDate", "startTime", "duration"}

func (s *webhookServiceImpl) handleCheckoutCompleted(ctx context.Context, ev CheckoutCompletedEvent) Outcome {
	session := ev.Session

	switch session.Mode {
	case model.CheckoutModeSubscription:
		// provisioning happens on customer.subscription.created
		return Skipped("subscription checkout acknowledged")
	case model.CheckoutModePayment:
	default:
		return Skipped(fmt.Sprintf("unsupported checkout mode %q", session.Mode))
	}

	checkoutType := session.Metadata["type"]
	switch checkoutType {
	case model.CheckoutTypeMarketplaceOrder:
		return s.handleMarketplaceOrder(ctx, session)
	case model.CheckoutTypeBooking:
		return s.handleBooking(ctx, session)
	}

	if !s.opts.UntypedPaymentAsBooking {
		s.log.Warn("untyped payment checkout skipped",
			zap.String("session_id", session.ID),
			zap.String("checkout_type", checkoutType),
		)
		return Skipped(fmt.Sprintf("unrecognised payment checkout type %q", checkoutType))
	}
	s.log.Warn("untyped payment checkout routed to booking flow",
		zap.String("session_id", session.ID),
		zap.String("checkout_type", checkoutType),
		zap.String("fallback", "booking"),
	)
	return s.handleBooking(ctx, session)
}

func (s *webhookServiceImpl) handleMarketplaceOrder(ctx context.Context, session model.StripeCheckoutSession) Outcome {
	if session.PaymentStatus != model.CheckoutPaymentStatusPaid {
		return Skipped("marketplace checkout not paid")
	}
	md := session.Metadata

	user, outcome, ok := s.resolveUser(ctx, md["userId"])
	if !ok {
		return outcome
	}

	var address model.ShippingAddress
	if raw := strings.TrimSpace(md["shippingAddress"]); raw != "" {
		parsed, err := ParseShippingAddress(raw)
		if err != nil {
			return Skipped(err.Error())
		}
		address = parsed
	}

	shippingCost, err := metadataAmount(md, "shippingCost")
	if err != nil {
		return Skipped(err.Error())
	}
	tax, err := metadataAmount(md, "tax")
	if err != nil {
		return Skipped(err.Error())
	}

	order, created, err := s.orderRepo.CreateFromCart(ctx, repository.CreateOrderInput{
		UserID:          user.ID,
		StripeSessionID: session.ID,
		ShippingAddress: address,
		ShippingCost:    shippingCost,
		Tax:             tax,
	})
	if errors.Is(err, repository.ErrEmptyCart) {
		return Skipped("cart is empty for user " + user.ID)
	}
	if err != nil {
		return Failed(fmt.Errorf("create order for session %s: %w", session.ID, err))
	}
	// a pending leftover means an earlier attempt stopped before MarkPaid and still needs finishing
	if !created && order.PaymentStatus == model.PaymentStatusPaid {
		return Skipped("order already paid for session " + session.ID)
	}

	paid, err := s.orderRepo.MarkPaid(ctx, order.ID)
	if err != nil {
		return Failed(fmt.Errorf("mark order %s paid: %w", order.ID, err))
	}
	order = paid

	points := order.TotalAmount.Floor().IntPart()
	s.effects.Fire(ctx, "loyalty_award", func(ctx context.Context) error {
		if points <= 0 {
			return nil
		}
		_, err := s.loyaltyRepo.Award(ctx, user.ID, points, loyaltyReasonOrder, order.ID)
		return err
	})
	s.effects.Fire(ctx, "order_confirmation", func(ctx context.Context) error {
		return s.notifier.Notify(ctx, notifier.TemplateOrderConfirmation, map[string]string{
			"userId":      user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"orderId":     order.ID,
			"totalAmount": order.TotalAmount.StringFixed(2),
		})
	})

	return Applied()
}

func (s *webhookServiceImpl) handleBooking(ctx context.Context, session model.StripeCheckoutSession) Outcome {
	md := session.Metadata

	var missing []string
	for _, field := range requiredBookingFields {
		if strings.TrimSpace(md[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Skipped("missing booking metadata: " + strings.Join(missing, ", "))
	}

	sessionType := model.SessionType(md["sessionType"])
	if !sessionType.Valid() {
		return Skipped(fmt.Sprintf("invalid session type %q", md["sessionType"]))
	}
	duration, err := strconv.Atoi(md["duration"])
	if err != nil || duration <= 0 {
		return Skipped(fmt.Sprintf("invalid duration %q", md["duration"]))
	}

	user, outcome, ok := s.resolveUser(ctx, md["userId"])
	if !ok {
		return outcome
	}

	booking, created, err := s.bookingRepo.CreateIfAbsent(ctx, &model.Booking{
		UserID:           user.ID,
		ClerkID:          user.ClerkID,
		TrainerID:        md["trainerId"],
		SessionType:      sessionType,
		SessionDate:      md["sessionDate"],
		StartTime:        md["startTime"],
		Duration:         duration,
		TotalAmount:      decimal.New(session.AmountTotal, -2),
		Currency:         session.Currency,
		PaymentSessionID: session.ID,
		Status:           model.BookingConfirmed,
		PaymentStatus:    model.PaymentStatusPaid,
		Notes:            md["notes"],
	})
	if err != nil {
		return Failed(fmt.Errorf("create booking for session %s: %w", session.ID, err))
	}
	if !created {
		return Skipped("booking already exists for session " + session.ID)
	}

	s.effects.Fire(ctx, "booking_confirmation", func(ctx context.Context) error {
		return s.notifier.Notify(ctx, notifier.TemplateBookingConfirmation, map[string]string{
			"userId":      user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"bookingId":   booking.ID,
			"trainerId":   booking.TrainerID,
			"sessionType": string(booking.SessionType),
			"sessionDate": booking.SessionDate,
			"startTime":   booking.StartTime,
		})
	})

	return Applied()
}

// resolveUser looks a user up by external identity, then by internal ID. When ok is false the
// returned outcome says why processing stops.
func (s *webhookServiceImpl) resolveUser(ctx context.Context, id string) (*model.User, Outcome, bool) {
	if id == "" {
		return nil, Skipped("missing userId metadata"), false
	}

	user, err := s.userRepo.FindByClerkID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.userRepo.FindByID(ctx, id)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Skipped("user not found: " + id), false
	}
	if err != nil {
		return nil, Failed(fmt.Errorf("find user %s: %w", id, err)), false
	}

	return user, Outcome{}, true
}

// metadataAmount parses an optional decimal amount from checkout metadata.
func metadataAmount(md map[string]string, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(md[key])
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s metadata %q", key, raw)
	}
	return amount, nil
}
