package service

import (
	"context"
	"errors"
	"fmt"
	"gym-billing-reconciler/internal/metrics"
	"gym-billing-reconciler/internal/repository"
	"time"

	"go.uber.org/zap"
)

var ErrEventInFlight = errors.New("event is being processed by another delivery")

// Ledger records which provider events have been processed.
type Ledger interface {
	// BeginProcessing claims the event. It reports alreadyProcessed when a previous delivery
	// completed it and ErrEventInFlight when another delivery currently holds it.
	BeginProcessing(ctx context.Context, eventID, eventType string) (alreadyProcessed bool, err error)
	Finalize(ctx context.Context, eventID string, success bool, errMsg string) error
}

type dbLedgerImpl struct {
	repo  repository.WebhookEventRepository
	lease time.Duration
	now   func() time.Time
}

func NewLedger(repo repository.WebhookEventRepository, lease time.Duration) Ledger {
	return &dbLedgerImpl{
		repo:  repo,
		lease: lease,
		now:   time.Now,
	}
}

func (l *dbLedgerImpl) BeginProcessing(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := l.repo.Claim(ctx, eventID, eventType, l.now(), l.lease)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}

	switch res {
	case repository.ClaimAlreadyProcessed:
		return true, nil
	case repository.ClaimInFlight:
		return false, ErrEventInFlight
	default:
		return false, nil
	}
}

func (l *dbLedgerImpl) Finalize(ctx context.Context, eventID string, success bool, errMsg string) error {
	if success {
		if err := l.repo.MarkProcessed(ctx, eventID); err != nil {
			return fmt.Errorf("mark event %s processed: %w", eventID, err)
		}
		return nil
	}

	if err := l.repo.MarkFailed(ctx, eventID, errMsg); err != nil {
		return fmt.Errorf("mark event %s failed: %w", eventID, err)
	}
	return nil
}

// ProcessedCache remembers processed event IDs in front of the database ledger.
type ProcessedCache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

type cachedLedgerImpl struct {
	next  Ledger
	cache ProcessedCache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedLedger short-circuits already-processed events from cache. Cache errors fall back to next.
func NewCachedLedger(next Ledger, cache ProcessedCache, ttl time.Duration, log *zap.Logger) Ledger {
	return &cachedLedgerImpl{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.Named("ledger_cache"),
	}
}

func processedKey(eventID string) string {
	return "webhook:processed:" + eventID
}

func (l *cachedLedgerImpl) BeginProcessing(ctx context.Context, eventID, eventType string) (bool, error) {
	hit, err := l.cache.Exists(ctx, processedKey(eventID))
	switch {
	case err != nil:
		metrics.LedgerCacheTotal.WithLabelValues("error").Inc()
		l.log.Warn("processed cache lookup failed", zap.String("event_id", eventID), zap.Error(err))
	case hit:
		metrics.LedgerCacheTotal.WithLabelValues("hit").Inc()
		return true, nil
	default:
		metrics.LedgerCacheTotal.WithLabelValues("miss").Inc()
	}

	already, err := l.next.BeginProcessing(ctx, eventID, eventType)
	if err == nil && already {
		l.remember(ctx, eventID)
	}
	return already, err
}

func (l *cachedLedgerImpl) Finalize(ctx context.Context, eventID string, success bool, errMsg string) error {
	if err := l.next.Finalize(ctx, eventID, success, errMsg); err != nil {
		return err
	}
	if success {
		l.remember(ctx, eventID)
	}
	return nil
}

func (l *cachedLedgerImpl) remember(ctx context.Context, eventID string) {
	if err := l.cache.Set(ctx, processedKey(eventID), "1", l.ttl); err != nil {
		l.log.Warn("processed cache write failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
