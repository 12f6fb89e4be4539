package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-settlement-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, email, password_hash, wallet_balance, kyc_status, account_status, role, created_at, updated_at`

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, email, password_hash, wallet_balance, kyc_status, account_status, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.WalletBalance,
		a.KYCStatus, a.AccountStatus, a.Role, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by its UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches an account by email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

// ApplyBalance executes the conditional balance update inside a storage
// transaction. The WHERE guard makes postgres both serialize concurrent
// updates (row lock) and reject overdrawing debits; zero rows affected means
// the guard refused and the balance is untouched.
func (r *AccountRepo) ApplyBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) (bool, error) {
	query := `UPDATE accounts
		SET wallet_balance = wallet_balance + $1, updated_at = NOW()
		WHERE id = $2 AND wallet_balance + $1 >= 0`

	tag, err := tx.Exec(ctx, query, amount, accountID)
	if err != nil {
		return false, fmt.Errorf("apply balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateKYCStatus updates the verification state inside a storage transaction.
func (r *AccountRepo) UpdateKYCStatus(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, status domain.KYCStatus) error {
	query := `UPDATE accounts SET kyc_status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, accountID)
	if err != nil {
		return fmt.Errorf("update kyc status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.WalletBalance,
		&a.KYCStatus, &a.AccountStatus, &a.Role, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
