package wallet

import "time"

// Wallet is an internal balance account per user, created lazily with balance
// 0 on first reference.
//
// Money invariant: the balance equals the signed sum of the wallet-method
// entries in the transaction log at all times. No code mutates a balance
// without appending a corresponding Transaction.
type Wallet struct {
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	BalanceMinor int64     `json:"balance_minor" db:"balance_minor"`
	Currency     string    `json:"currency" db:"currency"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is an immutable append-only ledger record.
//
// AmountMinor is signed: debits are negative, credits are positive. Entries
// with Method == external record gateway captures against the owner's log
// without touching the wallet balance (the funds never entered the wallet).
type Transaction struct {
	ID      string          `json:"id" db:"id"`
	OwnerID string          `json:"owner_id" db:"owner_id"`
	Type    TransactionType `json:"type" db:"type"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	Status    string `json:"status" db:"status"`
	BookingID string `json:"booking_id,omitempty" db:"booking_id"`
	Method    string `json:"method" db:"method"`

	// IdempotencyKey is required for safe retries of money-posting operations.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	Description string `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TransactionType string

const (
	TypePayment         TransactionType = "payment"          // guest pays for a booking
	TypePaymentReceived TransactionType = "payment_received" // host payout credit
	TypeRefund          TransactionType = "refund"           // manual ops credit back to a guest
)

const (
	MethodWallet   = "wallet"
	MethodExternal = "external"
)

const StatusCompleted = "completed"
