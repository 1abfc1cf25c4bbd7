package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to guests or hosts.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogPaymentMismatch records a capture whose amount disagreed with the booking
// total beyond tolerance.
func (s *Service) LogPaymentMismatch(ctx context.Context, bookingID, captureID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypePaymentMismatch,
		BookingID: bookingID,
		CaptureID: captureID,
		Message:   message,
		Metadata:  metadata,
	})
}

// LogAdminAction records an operator intervention (manual credits, review
// resolutions).
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message, bookingID, walletID, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		BookingID:   bookingID,
		WalletID:    walletID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogPayoutFailed records a provider-rejected host payout for ops follow-up.
func (s *Service) LogPayoutFailed(ctx context.Context, bookingID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypePayoutFailed,
		BookingID: bookingID,
		Message:   message,
		Metadata:  metadata,
	})
}
