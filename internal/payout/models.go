package payout

import "time"

// Method is how a host receives payouts. Hosts without a profile default to
// wallet.
type Method string

const (
	MethodWallet   Method = "wallet"
	MethodExternal Method = "external"
)

// Profile is a host's payout configuration. External hosts carry the channel
// and the account the money leaves through.
type Profile struct {
	HostID string `json:"host_id" db:"host_id"`
	Method Method `json:"method" db:"method"`

	// ExternalMethod names the outbound channel (bank_transfer, paypal, ...).
	// Set only when Method is external, along with the account reference.
	ExternalMethod string `json:"external_method,omitempty" db:"external_method"`
	AccountRef     string `json:"account_ref,omitempty" db:"account_ref"`
}

// PendingTransfer tracks an outbound settlement obligation owed to a host
// whose payout method is external. The host's internal wallet credit stays
// authoritative; this row only records that money must still leave the
// platform. Wallet-payout hosts settle inside the ledger and never create one.
type PendingTransfer struct {
	ID        string `json:"id" db:"id"`
	BookingID string `json:"booking_id" db:"booking_id"`
	HostID    string `json:"host_id" db:"host_id"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	// ExternalMethod and AccountRef are copied from the host's profile at
	// dispatch time so the obligation is self-contained.
	ExternalMethod string `json:"external_method" db:"external_method"`
	AccountRef     string `json:"account_ref" db:"account_ref"`

	Status TransferStatus `json:"status" db:"status"`

	// ProviderRef is set once the provider accepts the submission.
	ProviderRef   string `json:"provider_ref,omitempty" db:"provider_ref"`
	FailureReason string `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TransferStatus string

const (
	TransferPending TransferStatus = "pending"
	TransferSuccess TransferStatus = "success"
	TransferFailed  TransferStatus = "failed"
)
