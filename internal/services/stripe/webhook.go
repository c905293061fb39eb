package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"

	"github.com/GalaDe/ideas-service/internal/domain"
)

// WebhookUpdate is a payment status change carried by a Stripe event.
type WebhookUpdate struct {
	EventID    string
	EventType  string
	PaymentRef string
	Status     domain.PaymentStatus
}

// ParseWebhook verifies the Stripe-Signature header and extracts the status
// change of a checkout session event. Events that carry no status change
// return a nil update.
func (s *stripeImpl) ParseWebhook(payload []byte, signature string) (*WebhookUpdate, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.Config.WebhookKey)
	if err != nil {
		return nil, fmt.Errorf("stripe: invalid webhook: %w", err)
	}
	return updateFromEvent(event)
}

func updateFromEvent(event stripe.Event) (*WebhookUpdate, error) {
	var status domain.PaymentStatus

	var cs stripe.CheckoutSession
	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("stripe: decode %s event: %w", event.Type, err)
		}
	default:
		return nil, nil
	}

	switch event.Type {
	case "checkout.session.completed":
		status = MapSessionStatus(&cs)
		if status != domain.PaymentStatusCompleted {
			return nil, nil
		}
	case "checkout.session.async_payment_succeeded":
		status = domain.PaymentStatusCompleted
	case "checkout.session.async_payment_failed":
		status = domain.PaymentStatusFailed
	case "checkout.session.expired":
		status = domain.PaymentStatusCancelled
	}

	return &WebhookUpdate{
		EventID:    event.ID,
		EventType:  string(event.Type),
		PaymentRef: cs.ID,
		Status:     status,
	}, nil
}
