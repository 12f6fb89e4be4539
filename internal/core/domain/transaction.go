package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypePurchase   TransactionType = "PURCHASE"
	TransactionTypeSale       TransactionType = "SALE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// ParseTransactionType validates a transaction type supplied over the wire.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(s) {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePurchase,
		TransactionTypeSale, TransactionTypeAdjustment:
		return TransactionType(s), true
	}
	return "", false
}

// ValidateAmount enforces the sign discipline per type: deposits and sales
// credit the wallet, withdrawals and purchases debit it, adjustments may go
// either way but never zero.
func (t TransactionType) ValidateAmount(amount int64) bool {
	if amount == 0 {
		return false
	}
	switch t {
	case TransactionTypeDeposit, TransactionTypeSale:
		return amount > 0
	case TransactionTypeWithdrawal, TransactionTypePurchase:
		return amount < 0
	case TransactionTypeAdjustment:
		return true
	default:
		return false
	}
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsTerminal returns true if the status is final. A transaction is mutated
// exactly once, by whoever observes its outcome.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// Transaction is a single signed balance movement. Amount is positive for
// credits, negative for debits, in minor currency units. Reference is the
// caller-supplied idempotency key, unique per account.
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	AccountID uuid.UUID         `json:"account_id"`
	Amount    int64             `json:"amount"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Reference string            `json:"reference"`
	CreatedAt time.Time         `json:"created_at"`
	SettledAt *time.Time        `json:"settled_at,omitempty"`
}

// IsDebit returns true if settling this transaction reduces the balance.
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// BuildIdempotencyKey constructs the cache key for a ledger reference.
func BuildIdempotencyKey(accountID uuid.UUID, reference string) string {
	return accountID.String() + ":" + reference
}
