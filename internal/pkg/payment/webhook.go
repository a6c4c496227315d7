package payment

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
)

// checkoutSession is the slice of the checkout.session.completed payload we
// consume.
type checkoutSession struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// WebhookDecoder verifies Stripe webhook signatures and turns completed
// checkouts into payment events.
type WebhookDecoder struct {
	secret string
}

func NewWebhookDecoder(secret string) *WebhookDecoder {
	return &WebhookDecoder{secret: secret}
}

// Decode verifies the payload signature and, for a completed checkout,
// returns the payment event plus the session ID for failure tracking.
// Events of other types return a nil event and no error.
func (d *WebhookDecoder) Decode(payload []byte, sigHeader string) (*entitlement.PaymentEvent, string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, d.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("verify webhook signature: %w", err)
	}

	if event.Type != stripe.EventType("checkout.session.completed") {
		return nil, "", nil
	}

	var session checkoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, "", fmt.Errorf("decode checkout.session: %w", err)
	}

	ev, err := EventFromMetadata(session.Metadata)
	if err != nil {
		return nil, session.ID, err
	}
	return ev, session.ID, nil
}

// EventFromMetadata reconstructs a payment event from checkout session
// metadata. Used by both the webhook path and the manual session
// verification fallback.
func EventFromMetadata(metadata map[string]string) (*entitlement.PaymentEvent, error) {
	email := metadata["user_email"]
	plan := metadata["plan"]
	duration, _ := strconv.Atoi(metadata["duration"])
	if email == "" || plan == "" || duration <= 0 {
		return nil, fmt.Errorf("incomplete session metadata: %v", metadata)
	}
	recurring, _ := strconv.ParseBool(metadata["isRecurring"])

	return &entitlement.PaymentEvent{
		UserEmail:    email,
		PlanName:     plan,
		DurationDays: duration,
		IsRecurring:  recurring,
	}, nil
}
