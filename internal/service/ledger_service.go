package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// uniqueViolation is the postgres error code for a unique index conflict,
// raised when two concurrent records race on the same (account, reference).
const uniqueViolation = "23505"

// LedgerServiceImpl implements ports.LedgerService. It is the sole
// serialization point for balance mutations: the balance is only ever touched
// by the storage layer's conditional update, inside the same storage
// transaction that flips the ledger entry's status.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	events      ports.EventPublisher
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		events:      events,
		log:         log,
	}
}

// RecordTransaction creates a pending ledger entry for a funds-moving intent.
// Callers (UI retries, webhook redelivery) may invoke this more than once for
// the same event: replays keyed by (accountID, reference) return the prior
// transaction unchanged instead of creating a duplicate.
func (s *LedgerServiceImpl) RecordTransaction(ctx context.Context, req ports.RecordRequest) (*domain.Transaction, error) {
	if req.Reference == "" {
		return nil, apperror.Validation("reference is required")
	}
	if _, ok := domain.ParseTransactionType(string(req.Type)); !ok {
		return nil, apperror.ErrInvalidTransactionType()
	}
	if !req.Type.ValidateAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey := domain.BuildIdempotencyKey(req.AccountID, req.Reference)

	// Layer 1: Redis fast path. Only settled transactions are cached, so a
	// hit is always the final state.
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return unmarshalCachedTransaction(cached)
	}

	// Layer 2: durable lookup on the unique (account_id, reference) index.
	existing, err := s.txRepo.GetByReference(ctx, req.AccountID, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	txn := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Type:      req.Type,
		Status:    domain.TransactionStatusPending,
		Reference: req.Reference,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.txRepo.Create(ctx, txn); err != nil {
		// Lost an insert race on the unique index: the winner's row is the
		// transaction for this reference.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			winner, lookupErr := s.txRepo.GetByReference(ctx, req.AccountID, req.Reference)
			if lookupErr != nil {
				return nil, apperror.InternalError(fmt.Errorf("resolve reference race: %w", lookupErr))
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Str("type", string(req.Type)).
		Msg("transaction recorded")

	return txn, nil
}

// SettleTransaction finalizes a transaction. For a completed debit the
// balance guard and the balance change are one conditional update executed by
// the storage layer, inside the same storage transaction as the status flip,
// so status and balance can never diverge.
func (s *LedgerServiceImpl) SettleTransaction(ctx context.Context, txID uuid.UUID, outcome domain.TransactionStatus) (*domain.Transaction, error) {
	if outcome != domain.TransactionStatusCompleted && outcome != domain.TransactionStatusFailed {
		return nil, apperror.Validation("outcome must be COMPLETED or FAILED")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, txID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	if txn.Status.IsTerminal() {
		if txn.Status == outcome {
			// Idempotent replay of the same settle.
			return txn, nil
		}
		return nil, apperror.ErrConflictingState(
			fmt.Sprintf("transaction already settled as %s", txn.Status))
	}

	now := time.Now().UTC()

	if outcome == domain.TransactionStatusFailed {
		if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusFailed); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark transaction failed: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		txn.Status = domain.TransactionStatusFailed
		txn.SettledAt = &now
		s.finishSettle(ctx, txn)
		return txn, nil
	}

	// Apply "balance = balance + amount WHERE balance + amount >= 0". Zero
	// rows means the debit would overdraw; the balance is untouched.
	applied, err := s.accountRepo.ApplyBalance(ctx, dbTx, txn.AccountID, txn.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("apply balance: %w", err))
	}
	if !applied {
		if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusFailed); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark transaction failed: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("account_id", txn.AccountID.String()).
			Int64("amount", txn.Amount).
			Msg("debit rejected, insufficient funds")
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusCompleted); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark transaction completed: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.SettledAt = &now
	s.finishSettle(ctx, txn)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("account_id", txn.AccountID.String()).
		Int64("amount", txn.Amount).
		Msg("transaction settled")

	return txn, nil
}

// finishSettle caches the final transaction state for fast-path replays and
// emits the settled event. Both are best-effort post-commit steps.
func (s *LedgerServiceImpl) finishSettle(ctx context.Context, txn *domain.Transaction) {
	idempKey := domain.BuildIdempotencyKey(txn.AccountID, txn.Reference)
	if respJSON, err := json.Marshal(txn); err == nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache settled transaction")
		}
	}
	s.events.PublishTransactionSettled(ctx, txn)
}

// GetBalance returns the account's spendable balance. The value is always
// reconcilable to the sum of completed transactions; it is never used to
// authorize a debit outside the conditional update.
// FindByReference looks up the ledger entry recorded under the
// (accountID, reference) idempotency key. Nil without error when none exists.
func (s *LedgerServiceImpl) FindByReference(ctx context.Context, accountID uuid.UUID, reference string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByReference(ctx, accountID, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup transaction by reference: %w", err))
	}
	return txn, nil
}

func (s *LedgerServiceImpl) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return 0, apperror.ErrNotFound("account")
	}
	return account.WalletBalance, nil
}

// ListTransactions returns the account's ledger entries, newest first.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// Reconcile checks the ledger invariant for one account: stored balance equals
// the sum of completed transaction amounts.
func (s *LedgerServiceImpl) Reconcile(ctx context.Context, accountID uuid.UUID) (*ports.ReconcileResult, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	sum, err := s.txRepo.SumCompletedByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum completed transactions: %w", err))
	}

	result := &ports.ReconcileResult{
		AccountID:     accountID,
		StoredBalance: account.WalletBalance,
		CompletedSum:  sum,
		Consistent:    account.WalletBalance == sum,
	}
	if !result.Consistent {
		s.log.Error().
			Str("account_id", accountID.String()).
			Int64("stored_balance", result.StoredBalance).
			Int64("completed_sum", result.CompletedSum).
			Msg("ledger invariant violated")
	}
	return result, nil
}

// unmarshalCachedTransaction deserializes a cached transaction.
func unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached tx: %w", err))
	}
	return txn, nil
}
