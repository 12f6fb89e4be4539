package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-settlement-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionRepo implements ports.SubmissionRepository. The payload column is
// JSONB; the valuation rate inside it is immutable once written.
type SubmissionRepo struct {
	pool Pool
}

// NewSubmissionRepo creates a new SubmissionRepo.
func NewSubmissionRepo(pool Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, account_id, kind, payload, status, adjudicator_id, notes, linked_transaction_id, created_at, reviewed_at`

const submissionInsert = `INSERT INTO submissions (id, account_id, kind, payload, status, adjudicator_id, notes, linked_transaction_id, created_at, reviewed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Create inserts a new submission.
func (r *SubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	_, err := r.pool.Exec(ctx, submissionInsert,
		s.ID, s.AccountID, s.Kind, s.Payload, s.Status,
		s.AdjudicatorID, s.Notes, s.LinkedTransactionID, s.CreatedAt, s.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// CreateInTx inserts a new submission inside an existing storage transaction.
func (r *SubmissionRepo) CreateInTx(ctx context.Context, tx pgx.Tx, s *domain.Submission) error {
	_, err := tx.Exec(ctx, submissionInsert,
		s.ID, s.AccountID, s.Kind, s.Payload, s.Status,
		s.AdjudicatorID, s.Notes, s.LinkedTransactionID, s.CreatedAt, s.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by UUID.
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a submission with a row lock so concurrent
// adjudications serialize. Must be called within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 FOR UPDATE`
	return scanSubmission(tx.QueryRow(ctx, query, id))
}

// MarkApproved flips a pending submission to approved. The WHERE guard on
// status makes the terminal transition happen at most once.
func (r *SubmissionRepo) MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, adjudicatorID uuid.UUID, linkedTxID *uuid.UUID) error {
	query := `UPDATE submissions
		SET status = 'APPROVED', adjudicator_id = $1, linked_transaction_id = $2, reviewed_at = $3
		WHERE id = $4 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query, adjudicatorID, linkedTxID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark submission approved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not pending: %s", id)
	}
	return nil
}

// MarkRejected flips a pending submission to rejected with the adjudicator's
// notes.
func (r *SubmissionRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adjudicatorID uuid.UUID, notes string) error {
	query := `UPDATE submissions
		SET status = 'REJECTED', adjudicator_id = $1, notes = $2, reviewed_at = $3
		WHERE id = $4 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query, adjudicatorID, notes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark submission rejected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not pending: %s", id)
	}
	return nil
}

// LatestByKind fetches the newest submission of a kind for an account.
func (r *SubmissionRepo) LatestByKind(ctx context.Context, accountID uuid.UUID, kind domain.SubmissionKind) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE account_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1`
	return scanSubmission(r.pool.QueryRow(ctx, query, accountID, kind))
}

// ListByAccount fetches all submissions for an account, newest first.
func (r *SubmissionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE account_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

// ListByStatus fetches the adjudication queue, oldest first so reviewers work
// in arrival order.
func (r *SubmissionRepo) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list submissions by status: %w", err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

func collectSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	var subs []domain.Submission
	for rows.Next() {
		s := domain.Submission{}
		err := rows.Scan(
			&s.ID, &s.AccountID, &s.Kind, &s.Payload, &s.Status,
			&s.AdjudicatorID, &s.Notes, &s.LinkedTransactionID, &s.CreatedAt, &s.ReviewedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}
	return subs, nil
}

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	s := &domain.Submission{}
	err := row.Scan(
		&s.ID, &s.AccountID, &s.Kind, &s.Payload, &s.Status,
		&s.AdjudicatorID, &s.Notes, &s.LinkedTransactionID, &s.CreatedAt, &s.ReviewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return s, nil
}
