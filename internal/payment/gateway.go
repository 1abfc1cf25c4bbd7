package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrExternalService  = errors.New("payment: external gateway failure")
	ErrNotFound         = errors.New("payment: not found")
	ErrMismatch         = errors.New("payment: capture amount mismatch")
	ErrDuplicateCapture = errors.New("payment: booking already captured")
	ErrInvalidArgument  = errors.New("payment: invalid argument")
)

// Gateway abstracts the external payment provider. The engine never trusts
// gateway amounts; captured figures are reconciled against booking totals
// before any state moves.
type Gateway interface {
	// CreateOrder opens a payment order for the amount and returns a provider
	// reference plus a guest-facing approval URL.
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	// CaptureOrder captures a previously approved order.
	CaptureOrder(ctx context.Context, intentRef string) (Capture, error)
}

// OrderRequest carries what the provider needs to open an order.
type OrderRequest struct {
	BookingID   string
	GuestID     string
	AmountMinor int64
	Currency    string
	Description string
}

// Order is the provider-side representation of an opened payment.
type Order struct {
	IntentRef  string `json:"intent_ref"`
	ApproveURL string `json:"approve_url,omitempty"`
	Status     string `json:"status"`
}

// Capture is a settled charge reported by the provider, either from an
// explicit capture call or a webhook notification.
type Capture struct {
	CaptureID   string    `json:"capture_id"`
	IntentRef   string    `json:"intent_ref"`
	BookingID   string    `json:"booking_id,omitempty"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	PayerID     string    `json:"payer_id,omitempty"`
	PayerEmail  string    `json:"payer_email,omitempty"`
	Status      string    `json:"status"`
	CapturedAt  time.Time `json:"captured_at"`
}
