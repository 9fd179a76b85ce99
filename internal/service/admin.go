package service

import (
	"context"
	"errors"
	"fmt"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/repository"
	"strings"

	"go.uber.org/zap"
)

var ErrInvalidUser = errors.New("invalid user payload")

const defaultFailedEventsLimit = 100

type AdminService interface {
	ListFailedEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error)
	FixDuplicateMemberships(ctx context.Context) ([]model.Membership, error)
	UpsertUser(ctx context.Context, user *model.User) (*model.User, error)
}

type adminServiceImpl struct {
	webhookEventRepo repository.WebhookEventRepository
	memberRepo       repository.MembershipRepository
	userRepo         repository.UserRepository
	log              *zap.Logger
}

func NewAdminService(
	webhookEventRepo repository.WebhookEventRepository,
	memberRepo repository.MembershipRepository,
	userRepo repository.UserRepository,
	log *zap.Logger,
) AdminService {
	return &adminServiceImpl{
		webhookEventRepo: webhookEventRepo,
		memberRepo:       memberRepo,
		userRepo:         userRepo,
		log:              log.Named("admin"),
	}
}

func (s *adminServiceImpl) ListFailedEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	if limit <= 0 {
		limit = defaultFailedEventsLimit
	}

	events, err := s.webhookEventRepo.ListFailed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed events: %w", err)
	}

	return events, nil
}

func (s *adminServiceImpl) FixDuplicateMemberships(ctx context.Context) ([]model.Membership, error) {
	flagged, err := s.memberRepo.FixDuplicates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fix duplicate memberships: %w", err)
	}

	for _, m := range flagged {
		s.log.Info("membership flagged as duplicate",
			zap.String("membership_id", m.ID),
			zap.String("user_id", m.UserID),
			zap.String("subscription_id", m.StripeSubscriptionID),
		)
	}

	return flagged, nil
}

func (s *adminServiceImpl) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	user.ClerkID = strings.TrimSpace(user.ClerkID)
	if user.ClerkID == "" {
		return nil, fmt.Errorf("%w: clerk id is required", ErrInvalidUser)
	}

	stored, err := s.userRepo.Upsert(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", user.ClerkID, err)
	}

	return stored, nil
}
