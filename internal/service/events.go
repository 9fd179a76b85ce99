package service

import (
	"encoding/json"
	"fmt"
	"gym-billing-reconciler/internal/model"
	"time"

	"github.com/google/uuid"
)

// EventMeta is the envelope data shared by every event variant.
type EventMeta struct {
	ID          string
	Type        string
	Created     int64 // unix seconds
	Verified    bool
	Synthesized bool // ID was generated locally because the payload carried none
}

func (m EventMeta) Meta() EventMeta { return m }

// Event is one of SubscriptionEvent, CheckoutCompletedEvent, InvoiceEvent or UnknownEvent.
type Event interface {
	Meta() EventMeta
}

type SubscriptionEvent struct {
	EventMeta
	Subscription model.StripeSubscription
}

type CheckoutCompletedEvent struct {
	EventMeta
	Session model.StripeCheckoutSession
}

type InvoiceEvent struct {
	EventMeta
	Invoice model.StripeInvoice
}

// UnknownEvent is an event type the router has no handler for.
type UnknownEvent struct {
	EventMeta
}

type eventKind struct {
	// value of data.object.object for this event type
	objectName string
	decode     func(meta EventMeta, raw json.RawMessage) (Event, error)
}

var eventKinds = map[string]eventKind{
	model.EventSubscriptionCreated:     {objectName: "subscription", decode: decodeSubscription},
	model.EventSubscriptionUpdated:     {objectName: "subscription", decode: decodeSubscription},
	model.EventSubscriptionDeleted:     {objectName: "subscription", decode: decodeSubscription},
	model.EventCheckoutCompleted:       {objectName: "checkout.session", decode: decodeCheckout},
	model.EventInvoicePaymentSucceeded: {objectName: "invoice", decode: decodeInvoice},
	model.EventInvoicePaymentFailed:    {objectName: "invoice", decode: decodeInvoice},
}

func decodeSubscription(meta EventMeta, raw json.RawMessage) (Event, error) {
	ev := SubscriptionEvent{EventMeta: meta}
	if err := json.Unmarshal(raw, &ev.Subscription); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeCheckout(meta EventMeta, raw json.RawMessage) (Event, error) {
	ev := CheckoutCompletedEvent{EventMeta: meta}
	if err := json.Unmarshal(raw, &ev.Session); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeInvoice(meta EventMeta, raw json.RawMessage) (Event, error) {
	ev := InvoiceEvent{EventMeta: meta}
	if err := json.Unmarshal(raw, &ev.Invoice); err != nil {
		return nil, err
	}
	return ev, nil
}

// SynthesizeEventID builds an ID for payloads that arrive without one.
func SynthesizeEventID(now time.Time) string {
	return fmt.Sprintf("synth_%d_%s", now.UnixMilli(), uuid.NewString())
}

// decodeEvent turns a raw envelope into a typed event variant.
func decodeEvent(body []byte, verified bool, now time.Time) (Event, error) {
	var env model.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	meta := EventMeta{
		ID:       env.ID,
		Type:     env.Type,
		Created:  env.Created,
		Verified: verified,
	}
	if meta.ID == "" {
		meta.ID = SynthesizeEventID(now)
		meta.Synthesized = true
	}

	kind, ok := eventKinds[env.Type]
	if !ok {
		return UnknownEvent{EventMeta: meta}, nil
	}
	if !isJSONObject(env.Data.Object) {
		return nil, fmt.Errorf("%w: data.object is not an object", ErrMalformedEvent)
	}

	ev, err := kind.decode(meta, env.Data.Object)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, env.Type, err)
	}

	return ev, nil
}

// looksLikeEvent reports whether an unverified body resembles an event the router handles:
// a known type whose data.object is an object with a matching "object" discriminator, if any.
func looksLikeEvent(body []byte) bool {
	var env model.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	kind, ok := eventKinds[env.Type]
	if !ok || !isJSONObject(env.Data.Object) {
		return false
	}

	var probe struct {
		Object *string `json:"object"`
	}
	if err := json.Unmarshal(env.Data.Object, &probe); err != nil {
		return false
	}

	return probe.Object == nil || *probe.Object == kind.objectName
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
