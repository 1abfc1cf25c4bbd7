package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway drives Stripe payment intents with manual capture so money
// moves only after the reconciliation checks pass.
type StripeGateway struct {
	client *stripe.Client
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{client: stripe.NewClient(secretKey)}
}

func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.AmountMinor <= 0 || req.Currency == "" {
		return Order{}, fmt.Errorf("%w: amount and currency are required", ErrInvalidArgument)
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Description:   stripe.String(req.Description),
		Metadata: map[string]string{
			"booking_id": req.BookingID,
			"guest_id":   req.GuestID,
		},
	}

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return Order{}, fmt.Errorf("%w: create payment intent: %v", ErrExternalService, err)
	}

	return Order{
		IntentRef:  pi.ID,
		ApproveURL: nextActionURL(pi),
		Status:     string(pi.Status),
	}, nil
}

func (g *StripeGateway) CaptureOrder(ctx context.Context, intentRef string) (Capture, error) {
	if intentRef == "" {
		return Capture{}, fmt.Errorf("%w: intent ref is required", ErrInvalidArgument)
	}

	pi, err := g.client.V1PaymentIntents.Capture(ctx, intentRef, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return Capture{}, fmt.Errorf("%w: capture payment intent: %v", ErrExternalService, err)
	}
	return captureFromIntent(pi), nil
}

// ParseWebhookCapture verifies the webhook signature and extracts a capture
// from a payment_intent.succeeded event. ok is false for event types the
// engine does not act on.
func ParseWebhookCapture(payload []byte, sigHeader, webhookSecret string) (Capture, bool, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, webhookSecret)
	if err != nil {
		return Capture{}, false, fmt.Errorf("%w: verify webhook signature: %v", ErrInvalidArgument, err)
	}

	if event.Type != "payment_intent.succeeded" {
		return Capture{}, false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Capture{}, false, fmt.Errorf("%w: parse payment intent: %v", ErrInvalidArgument, err)
	}
	return captureFromIntent(&pi), true, nil
}

func captureFromIntent(pi *stripe.PaymentIntent) Capture {
	c := Capture{
		CaptureID:   pi.ID,
		IntentRef:   pi.ID,
		BookingID:   pi.Metadata["booking_id"],
		AmountMinor: pi.AmountReceived,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Status:      string(pi.Status),
		CapturedAt:  time.Unix(pi.Created, 0).UTC(),
	}
	if pi.AmountReceived == 0 {
		c.AmountMinor = pi.Amount
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		c.CaptureID = pi.LatestCharge.ID
	}
	return c
}

func nextActionURL(pi *stripe.PaymentIntent) string {
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		return pi.NextAction.RedirectToURL.URL
	}
	return ""
}
