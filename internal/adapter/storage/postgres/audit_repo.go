package postgres

import (
	"context"
	"fmt"

	"wallet-settlement-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository. Rows are append-only.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create appends an adjudication audit entry inside the same storage
// transaction as the decision it records.
func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditEntry) error {
	query := `INSERT INTO adjudication_audit (id, adjudicator_id, submission_id, action, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.AdjudicatorID, e.SubmissionID, e.Action, e.Notes, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListBySubmission fetches the audit trail for one submission, oldest first.
func (r *AuditRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]domain.AuditEntry, error) {
	query := `SELECT id, adjudicator_id, submission_id, action, notes, created_at
		FROM adjudication_audit WHERE submission_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		e := domain.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.AdjudicatorID, &e.SubmissionID, &e.Action, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, nil
}
