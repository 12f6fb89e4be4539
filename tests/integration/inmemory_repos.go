package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-settlement-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("email already exists")
		}
	}
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// ApplyBalance mirrors the conditional update: the guard and the mutation are
// one atomic step under the lock, so concurrent debits cannot overdraw.
func (r *inMemoryAccountRepo) ApplyBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return false, fmt.Errorf("account not found")
	}
	if a.WalletBalance+amount < 0 {
		return false, nil
	}
	a.WalletBalance += amount
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *inMemoryAccountRepo) UpdateKYCStatus(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, status domain.KYCStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.KYCStatus = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

// Create enforces the unique (account_id, reference) index the way the real
// store does: a duplicate surfaces as a 23505 pgconn error.
func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.transactions {
		if existing.AccountID == t.AccountID && existing.Reference == t.Reference {
			return &pgconn.PgError{Code: "23505", ConstraintName: "transactions_account_reference_key"}
		}
	}
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) GetByReference(ctx context.Context, accountID uuid.UUID, reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.AccountID == accountID && t.Reference == reference {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	t.Status = status
	if status.IsTerminal() {
		now := time.Now().UTC()
		t.SettledAt = &now
	}
	return nil
}

func (r *inMemoryTransactionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.AccountID == accountID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if offset >= len(result) {
		return []domain.Transaction{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *inMemoryTransactionRepo) SumCompletedByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, t := range r.transactions {
		if t.AccountID == accountID && t.Status == domain.TransactionStatusCompleted {
			sum += t.Amount
		}
	}
	return sum, nil
}

// --- In-Memory Submission Repo ---

type inMemorySubmissionRepo struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]*domain.Submission
}

func newInMemorySubmissionRepo() *inMemorySubmissionRepo {
	return &inMemorySubmissionRepo{submissions: make(map[uuid.UUID]*domain.Submission)}
}

func (r *inMemorySubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.submissions[s.ID] = &cp
	return nil
}

func (r *inMemorySubmissionRepo) CreateInTx(ctx context.Context, tx pgx.Tx, s *domain.Submission) error {
	return r.Create(ctx, s)
}

func (r *inMemorySubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Submission, error) {
	return r.GetByID(ctx, id)
}

// MarkApproved flips a pending submission exactly once, like the status-guarded
// UPDATE in the real store.
func (r *inMemorySubmissionRepo) MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, adjudicatorID uuid.UUID, linkedTxID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found")
	}
	if s.Status != domain.SubmissionStatusPending {
		return fmt.Errorf("submission %s is not pending", id)
	}
	now := time.Now().UTC()
	s.Status = domain.SubmissionStatusApproved
	s.AdjudicatorID = &adjudicatorID
	s.LinkedTransactionID = linkedTxID
	s.ReviewedAt = &now
	return nil
}

func (r *inMemorySubmissionRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adjudicatorID uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found")
	}
	if s.Status != domain.SubmissionStatusPending {
		return fmt.Errorf("submission %s is not pending", id)
	}
	now := time.Now().UTC()
	s.Status = domain.SubmissionStatusRejected
	s.AdjudicatorID = &adjudicatorID
	s.Notes = notes
	s.ReviewedAt = &now
	return nil
}

func (r *inMemorySubmissionRepo) LatestByKind(ctx context.Context, accountID uuid.UUID, kind domain.SubmissionKind) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.Submission
	for _, s := range r.submissions {
		if s.AccountID != accountID || s.Kind != kind {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *inMemorySubmissionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Submission
	for _, s := range r.submissions {
		if s.AccountID == accountID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *inMemorySubmissionRepo) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Submission
	for _, s := range r.submissions {
		if s.Status == status {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if offset >= len(result) {
		return []domain.Submission{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryAuditRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.AuditEntry
	for _, e := range r.entries {
		if e.SubmissionID == submissionID {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- In-Memory Idempotency Cache ---

type inMemoryIdempotencyCache struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func newInMemoryIdempotencyCache() *inMemoryIdempotencyCache {
	return &inMemoryIdempotencyCache{values: make(map[string][]byte)}
}

func (c *inMemoryIdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (c *inMemoryIdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
