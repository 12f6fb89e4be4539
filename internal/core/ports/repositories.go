package ports

import (
	"context"

	"wallet-settlement-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside storage transactions so submission
// status and account state change together or not at all.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// ApplyBalance executes the conditional update
	// "wallet_balance = wallet_balance + amount WHERE wallet_balance + amount >= 0"
	// at the storage layer. It returns false when the guard rejects the
	// debit; the balance is untouched in that case.
	ApplyBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) (bool, error)
	UpdateKYCStatus(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, status domain.KYCStatus) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// GetByIDForUpdate locks the transaction row so concurrent settles of the
	// same transaction serialize. Must be called within a transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, accountID uuid.UUID, reference string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	// SumCompletedByAccount supports balance reconciliation against the
	// sum-of-completed-transactions invariant.
	SumCompletedByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// SubmissionRepository defines persistence operations for submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, s *domain.Submission) error
	// CreateInTx inserts a submission inside an existing storage transaction
	// (KYC submission insert + account status flip are one atomic unit).
	CreateInTx(ctx context.Context, tx pgx.Tx, s *domain.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Submission, error)
	// MarkApproved and MarkRejected are the only mutations a submission ever
	// receives; both run inside a storage transaction.
	MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, adjudicatorID uuid.UUID, linkedTxID *uuid.UUID) error
	MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adjudicatorID uuid.UUID, notes string) error
	LatestByKind(ctx context.Context, accountID uuid.UUID, kind domain.SubmissionKind) (*domain.Submission, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Submission, error)
	ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]domain.Submission, error)
}

// AuditRepository persists the immutable adjudication audit trail.
type AuditRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]domain.AuditEntry, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
