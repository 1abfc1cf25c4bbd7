package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"booking-platform/pkg/utils"
)

// Repository abstracts ledger persistence. Implementations must make each
// method individually atomic; the Service sequences them inside one runner
// unit so that a balance change and its ledger entry commit together.
type Repository interface {
	// GetOrCreateWallet returns the owner's wallet, creating it with balance 0
	// on first reference.
	GetOrCreateWallet(ctx context.Context, ownerID, currency string) (Wallet, error)

	FindEntryByKey(ctx context.Context, ownerID, idempotencyKey string) (Transaction, bool, error)
	AppendEntry(ctx context.Context, e Transaction) error

	// ApplyDelta adjusts the balance and returns the new value. It fails
	// closed with ErrInsufficientFunds instead of allowing a negative balance.
	ApplyDelta(ctx context.Context, ownerID string, deltaMinor int64) (int64, error)

	Balance(ctx context.Context, ownerID string) (int64, bool, error)
	Entries(ctx context.Context, ownerID string) ([]Transaction, error)
}

var (
	ErrNotFound          = errors.New("wallet: not found")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrInvalidArgument   = errors.New("wallet: invalid argument")
)

// Service owns all wallet balance mutations. No other component writes a
// balance directly. Every mutation runs under the runner so the ledger entry
// and the balance delta commit together even when the caller holds no
// transaction of its own; a caller that does is joined, not nested.
type Service struct {
	repo   Repository
	runner utils.AtomicRunner
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, runner utils.AtomicRunner) *Service {
	return &Service{repo: repo, runner: runner, clock: time.Now}
}

type CreditRequest struct {
	AmountMinor    int64
	Currency       string
	Type           TransactionType
	BookingID      string
	IdempotencyKey string
	Description    string
}

type DebitRequest struct {
	AmountMinor    int64
	Currency       string
	BookingID      string
	IdempotencyKey string
	Description    string
}

// Credit adds funds to the owner's wallet and appends a ledger entry.
// Idempotent: re-posting the same key returns the existing entry.
func (s *Service) Credit(ctx context.Context, ownerID string, req CreditRequest) (Transaction, int64, error) {
	if err := validateMoneyReq(ownerID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Transaction{}, 0, err
	}
	if req.Type == "" {
		req.Type = TypePaymentReceived
	}

	var entry Transaction
	var bal int64
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetOrCreateWallet(ctx, ownerID, req.Currency)
		if err != nil {
			return err
		}
		if w.Currency != req.Currency {
			return ErrInvalidArgument
		}

		if existing, ok, err := s.repo.FindEntryByKey(ctx, ownerID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			entry = existing
			bal, _, err = s.repo.Balance(ctx, ownerID)
			return err
		}

		entry = Transaction{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Type:           req.Type,
			AmountMinor:    req.AmountMinor,
			Currency:       req.Currency,
			Status:         StatusCompleted,
			BookingID:      req.BookingID,
			Method:         MethodWallet,
			IdempotencyKey: req.IdempotencyKey,
			Description:    req.Description,
			CreatedAt:      s.clock().UTC(),
		}
		if err := s.repo.AppendEntry(ctx, entry); err != nil {
			return err
		}
		bal, err = s.repo.ApplyDelta(ctx, ownerID, req.AmountMinor)
		return err
	})
	if err != nil {
		return Transaction{}, 0, err
	}
	return entry, bal, nil
}

// Debit removes funds from the owner's wallet, failing closed when the
// balance is insufficient.
func (s *Service) Debit(ctx context.Context, ownerID string, req DebitRequest) (Transaction, int64, error) {
	if err := validateMoneyReq(ownerID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Transaction{}, 0, err
	}

	var entry Transaction
	var bal int64
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetOrCreateWallet(ctx, ownerID, req.Currency)
		if err != nil {
			return err
		}
		if w.Currency != req.Currency {
			return ErrInvalidArgument
		}

		if existing, ok, err := s.repo.FindEntryByKey(ctx, ownerID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			entry = existing
			bal, _, err = s.repo.Balance(ctx, ownerID)
			return err
		}

		// The delta is applied first: its conditional write is what rejects
		// an overdraft, and the unit discards the entry on failure.
		if bal, err = s.repo.ApplyDelta(ctx, ownerID, -req.AmountMinor); err != nil {
			return err
		}

		entry = Transaction{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Type:           TypePayment,
			AmountMinor:    -req.AmountMinor,
			Currency:       req.Currency,
			Status:         StatusCompleted,
			BookingID:      req.BookingID,
			Method:         MethodWallet,
			IdempotencyKey: req.IdempotencyKey,
			Description:    req.Description,
			CreatedAt:      s.clock().UTC(),
		}
		return s.repo.AppendEntry(ctx, entry)
	})
	if err != nil {
		return Transaction{}, 0, err
	}
	return entry, bal, nil
}

// RecordExternalPayment appends a capture record to the guest's log without a
// balance change (the funds were collected by the gateway, not the wallet).
// Idempotency key is the capture id, so duplicate deliveries append once.
func (s *Service) RecordExternalPayment(ctx context.Context, ownerID string, amountMinor int64, currency, bookingID, captureID string) (Transaction, error) {
	if err := validateMoneyReq(ownerID, amountMinor, currency, captureID); err != nil {
		return Transaction{}, err
	}

	var entry Transaction
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetOrCreateWallet(ctx, ownerID, currency); err != nil {
			return err
		}
		if existing, ok, err := s.repo.FindEntryByKey(ctx, ownerID, captureID); err != nil {
			return err
		} else if ok {
			entry = existing
			return nil
		}

		entry = Transaction{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Type:           TypePayment,
			AmountMinor:    -amountMinor,
			Currency:       currency,
			Status:         StatusCompleted,
			BookingID:      bookingID,
			Method:         MethodExternal,
			IdempotencyKey: captureID,
			CreatedAt:      s.clock().UTC(),
		}
		return s.repo.AppendEntry(ctx, entry)
	})
	if err != nil {
		return Transaction{}, err
	}
	return entry, nil
}

// Balance reads the committed balance. An unreferenced owner reads as 0.
func (s *Service) Balance(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, ErrInvalidArgument
	}
	bal, ok, err := s.repo.Balance(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bal, nil
}

// History returns the owner's ledger entries, newest first.
func (s *Service) History(ctx context.Context, ownerID string) ([]Transaction, error) {
	if ownerID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.Entries(ctx, ownerID)
}

func validateMoneyReq(ownerID string, amountMinor int64, currency, idempotencyKey string) error {
	if ownerID == "" {
		return ErrInvalidArgument
	}
	if currency == "" {
		return ErrInvalidArgument
	}
	if idempotencyKey == "" {
		return ErrInvalidArgument
	}
	if amountMinor <= 0 {
		return ErrInvalidArgument
	}
	return nil
}
