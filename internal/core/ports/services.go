package ports

import (
	"context"
	"time"

	"wallet-settlement-core/internal/core/domain"

	"github.com/google/uuid"
)

// AccountGate evaluates whether an account may perform a category of
// financial action given its current verification/account state. Every call
// re-reads the account record; decisions are never cached from a prior
// session.
type AccountGate interface {
	CanPerform(ctx context.Context, accountID uuid.UUID, action domain.Action) (domain.Decision, error)
}

// LedgerService records and settles signed-amount transactions against an
// account's balance, with idempotency and no-overdraft guarantees. It is the
// sole serialization point for balance mutations.
type LedgerService interface {
	// RecordTransaction creates a pending ledger entry. Replays with the same
	// (accountID, reference) return the prior transaction unchanged.
	RecordTransaction(ctx context.Context, req RecordRequest) (*domain.Transaction, error)
	// SettleTransaction finalizes a transaction's effect on the balance.
	// Status and balance change in one storage transaction, never apart.
	SettleTransaction(ctx context.Context, txID uuid.UUID, outcome domain.TransactionStatus) (*domain.Transaction, error)
	// FindByReference returns the ledger entry recorded under the
	// (accountID, reference) idempotency key, or nil when none exists.
	FindByReference(ctx context.Context, accountID uuid.UUID, reference string) (*domain.Transaction, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	// Reconcile compares the stored balance with the sum of completed
	// transaction amounts for the account.
	Reconcile(ctx context.Context, accountID uuid.UUID) (*ReconcileResult, error)
}

// RecordRequest holds validated input for recording a ledger entry.
type RecordRequest struct {
	AccountID uuid.UUID
	Amount    int64 // signed; positive=credit, negative=debit
	Type      domain.TransactionType
	Reference string // caller-supplied idempotency key
}

// ReconcileResult reports the ledger invariant check for one account.
type ReconcileResult struct {
	AccountID     uuid.UUID `json:"account_id"`
	StoredBalance int64     `json:"stored_balance"`
	CompletedSum  int64     `json:"completed_sum"`
	Consistent    bool      `json:"consistent"`
}

// SubmissionService turns manually-adjudicated claims into ledger events or
// account-state updates.
type SubmissionService interface {
	SubmitClaim(ctx context.Context, accountID uuid.UUID, kind domain.SubmissionKind, payload domain.SubmissionPayload) (*domain.Submission, error)
	Approve(ctx context.Context, adjudicatorID, submissionID uuid.UUID) (*domain.Submission, error)
	Reject(ctx context.Context, adjudicatorID, submissionID uuid.UUID, notes string) (*domain.Submission, error)
	// Resubmit creates a brand-new pending KYC submission after a rejection.
	// The rejected record is never reopened.
	Resubmit(ctx context.Context, accountID uuid.UUID, payload domain.SubmissionPayload) (*domain.Submission, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Submission, error)
	ListPending(ctx context.Context, limit, offset int) ([]domain.Submission, error)
}

// EventPublisher delivers domain events at-least-once, fire-and-forget.
// Failure to deliver never rolls back the core state change.
type EventPublisher interface {
	PublishTransactionSettled(ctx context.Context, t *domain.Transaction)
	PublishSubmissionApproved(ctx context.Context, s *domain.Submission)
	PublishSubmissionRejected(ctx context.Context, s *domain.Submission)
}

// AuthService defines signup and login for the HTTP surface. Signup is where
// the account lifecycle starts: balance 0, KYC not submitted, active.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// HashService handles password hashing.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles session token operations. Token claims identify the
// caller only; authority is always re-verified by the gate against the
// current account record.
type TokenService interface {
	Generate(accountID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed session claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Role      domain.Role
}

// SignatureService handles HMAC-SHA256 signing for monitor webhooks and
// outgoing notifier payloads.
type SignatureService interface {
	Sign(secret string, payload string) string
	Verify(secret string, payload string, signature string) bool
}

// IdempotencyCache is the fast-path idempotency lookup. It is an optimization
// only: a cached value never authorizes a debit, the conditional update
// re-validates under the same atomic step.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for monitor webhook replay protection.
type NonceStore interface {
	// CheckAndSet atomically records the nonce. Returns true if the nonce is
	// new, false if already used.
	CheckAndSet(ctx context.Context, source string, nonce string, ttl time.Duration) (bool, error)
}
