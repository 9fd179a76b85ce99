package service

import (
	"context"
	"fmt"
	"gym-billing-reconciler/internal/metrics"

	"go.uber.org/zap"
)

// EffectDispatcher runs best-effort side effects after the primary mutation succeeded.
type EffectDispatcher interface {
	Fire(ctx context.Context, name string, effect func(ctx context.Context) error)
}

type effectDispatcherImpl struct {
	log *zap.Logger
}

func NewEffectDispatcher(log *zap.Logger) EffectDispatcher {
	return &effectDispatcherImpl{log: log.Named("effects")}
}

// Fire awaits effect and swallows its error or panic.
func (d *effectDispatcherImpl) Fire(ctx context.Context, name string, effect func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues(name).Inc()
			d.log.Error("side effect panicked", zap.String("effect", name), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := effect(ctx); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues(name).Inc()
		d.log.Warn("side effect failed", zap.String("effect", name), zap.Error(err))
	}
}
