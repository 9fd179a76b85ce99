package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	TemplateMembershipWelcome   = "membership_welcome"
	TemplateOrderConfirmation   = "order_confirmation"
	TemplateBookingConfirmation = "booking_confirmation"
)

// Notifier delivers a templated message to a user. Delivery internals live elsewhere.
type Notifier interface {
	Notify(ctx context.Context, template string, params map[string]string) error
}

type logNotifierImpl struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &logNotifierImpl{log: log.Named("notifier")}
}

func (n *logNotifierImpl) Notify(ctx context.Context, template string, params map[string]string) error {
	fields := make([]zap.Field, 0, len(params)+1)
	fields = append(fields, zap.String("template", template))
	for k, v := range params {
		fields = append(fields, zap.String(k, v))
	}
	n.log.Info("notification", fields...)
	return nil
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Message struct {
	Template string            `json:"template"`
	Params   map[string]string `json:"params"`
	SentAt   time.Time         `json:"sentAt"`
}

type brokerNotifierImpl struct {
	publisher Publisher
}

// NewBrokerNotifier publishes each notification with routing key "notification.<template>".
func NewBrokerNotifier(publisher Publisher) Notifier {
	return &brokerNotifierImpl{publisher: publisher}
}

func (n *brokerNotifierImpl) Notify(ctx context.Context, template string, params map[string]string) error {
	msg := Message{
		Template: template,
		Params:   params,
		SentAt:   time.Now().UTC(),
	}
	if err := n.publisher.PublishJSON(ctx, "notification."+template, msg); err != nil {
		return fmt.Errorf("publish %s notification: %w", template, err)
	}
	return nil
}
