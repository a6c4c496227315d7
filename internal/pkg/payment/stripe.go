package payment

import (
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/nasuf/dictation-studio-service/internal/pkg/env"
)

// StripeClient creates and retrieves checkout sessions. The session calls
// are injectable so tests never hit Stripe.
type StripeClient struct {
	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	priceIDs      map[string]string
}

// NewStripeClient configures the Stripe SDK from the environment and
// returns a client bound to the per-plan price IDs.
func NewStripeClient() *StripeClient {
	stripe.Key = env.GetEnv("STRIPE_SECRET_KEY", "")
	return &StripeClient{
		createSession: stripesession.New,
		getSession:    stripesession.Get,
		priceIDs: map[string]string{
			"Basic":   env.GetEnv("STRIPE_PRICE_ID_BASIC", ""),
			"Pro":     env.GetEnv("STRIPE_PRICE_ID_PRO", ""),
			"Premium": env.GetEnv("STRIPE_PRICE_ID_PREMIUM", ""),
		},
	}
}

// CheckoutSession is what the API returns for a created checkout: the
// session ID for later verification and the URL the client redirects to.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCheckoutSession opens a Stripe checkout for the given plan. The
// plan metadata rides on the session so the webhook can apply it without
// any local pending-order state.
func (c *StripeClient) CreateCheckoutSession(userEmail, planName string, durationDays int, isRecurring bool) (*CheckoutSession, error) {
	priceID, ok := c.priceIDs[planName]
	if !ok || priceID == "" {
		return nil, fmt.Errorf("no price configured for plan %s", planName)
	}

	mode := stripe.CheckoutSessionModePayment
	if isRecurring {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(mode)),
		SuccessURL:    stripe.String(env.GetEnv("PAYMENT_SUCCESS_URL", "https://dictationstudio.com/payment/success")),
		CancelURL:     stripe.String(env.GetEnv("PAYMENT_CANCEL_URL", "https://dictationstudio.com/payment/cancel")),
		CustomerEmail: stripe.String(userEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_email":  userEmail,
			"plan":        planName,
			"duration":    strconv.Itoa(durationDays),
			"isRecurring": strconv.FormatBool(isRecurring),
		},
	}

	session, err := c.createSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// VerifySession retrieves a checkout session and reports whether it has
// been paid, along with the metadata needed to re-apply a plan update.
func (c *StripeClient) VerifySession(sessionID string) (paid bool, metadata map[string]string, err error) {
	session, err := c.getSession(sessionID, nil)
	if err != nil {
		return false, nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, session.Metadata, nil
}
