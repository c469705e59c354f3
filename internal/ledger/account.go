// Package ledger defines the domain model of the profit-share ledger:
// accounts, transaction records, certificate kinds and the share/resale
// arithmetic. Balances are stored as int64 in whole currency units and
// must stay non-negative multiples of the configured share unit.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Certificate kinds an account can hold.
const (
	CertificateNone  = "none"
	CertificateSmall = "small"
	CertificateLarge = "large"
)

// Transaction kinds recorded in the per-account log.
const (
	TxInvestment          = "investment"
	TxReinvestment        = "reinvestment"
	TxTransferOut         = "transfer_out"
	TxTransferIn          = "transfer_in"
	TxVerification        = "verification"
	TxCertificateDownload = "certificate_download"
)

// Account is a holder of profit shares, keyed by its opaque identifier.
// Contact details are stored as one-way fingerprints only.
type Account struct {
	ID               string    `json:"id" db:"uid"`
	Name             string    `json:"name" db:"name"`
	PhoneFingerprint string    `json:"phone_fingerprint" db:"phone_hash"`
	EmailFingerprint string    `json:"email_fingerprint,omitempty" db:"email_hash"`
	Balance          int64     `json:"balance" db:"balance"`
	ResaleValue      int64     `json:"resale_value" db:"resale_value"`
	CertificateKind  string    `json:"certificate_kind" db:"certificate_kind"`
	Version          int       `json:"-" db:"version"` // optimistic locking
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is one entry of an account's append-only ledger log.
// Amount is negative for outgoing transfers and zero for non-monetary
// events such as verifications and certificate downloads.
type Transaction struct {
	ID          int       `json:"id" db:"id"`
	AccountID   string    `json:"account_id" db:"account_uid"`
	ReferenceID string    `json:"reference_id" db:"reference_id"`
	Kind        string    `json:"kind" db:"kind"`
	Amount      int64     `json:"amount" db:"amount"`
	Details     string    `json:"details" db:"details"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Note is one administrative update appended to an account.
type Note struct {
	ID        int       `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_uid"`
	Text      string    `json:"text" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Config carries the business parameters of the ledger. The unit and the
// per-share resale rate are deployment configuration, not protocol constants.
type Config struct {
	UnitAmount         int64 // currency units per share
	ResaleRatePerShare int64 // resale payout per share
}

// ValidAmount reports whether amount is a strictly positive multiple of the unit.
func (c Config) ValidAmount(amount int64) bool {
	return amount > 0 && amount%c.UnitAmount == 0
}

// SharesOf returns the number of whole shares a balance represents.
func (c Config) SharesOf(balance int64) int64 {
	return balance / c.UnitAmount
}

// ResaleValueOf derives the resale value of a balance. It must be recomputed
// and stored together with every balance write.
func (c Config) ResaleValueOf(balance int64) int64 {
	return c.SharesOf(balance) * c.ResaleRatePerShare
}

// Fingerprint returns the one-way hash under which contact details are stored.
func Fingerprint(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
