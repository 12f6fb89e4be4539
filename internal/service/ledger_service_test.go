package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/internal/core/ports/mocks"
	"wallet-settlement-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	accountRepo *mocks.MockAccountRepository
	txRepo      *mocks.MockTransactionRepository
	idempCache  *mocks.MockIdempotencyCache
	transactor  *mocks.MockDBTransactor
	events      *mocks.MockEventPublisher
	ctrl        *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		events:      mocks.NewMockEventPublisher(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLedgerService(
		d.accountRepo, d.txRepo, d.idempCache, d.transactor, d.events, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// ==================== RecordTransaction Tests ====================

func TestLedgerService_RecordTransaction_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildIdempotencyKey(accountID, "dep-001")

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "dep-001").Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{ID: accountID}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	txn, err := d.svc.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Reference: "dep-001",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionStatusPending, txn.Status)
	assert.Equal(t, int64(5000), txn.Amount)
	assert.Equal(t, "dep-001", txn.Reference)
}

func TestLedgerService_RecordTransaction_MissingReference(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.RecordTransaction(context.Background(), ports.RecordRequest{
		AccountID: uuid.New(),
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
	})
	assertAppError(t, err, "VAL_001")
}

func TestLedgerService_RecordTransaction_SignConvention(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	tests := []struct {
		name   string
		txType domain.TransactionType
		amount int64
	}{
		{"deposit must be positive", domain.TransactionTypeDeposit, -100},
		{"withdrawal must be negative", domain.TransactionTypeWithdrawal, 100},
		{"purchase must be negative", domain.TransactionTypePurchase, 100},
		{"sale must be positive", domain.TransactionTypeSale, -100},
		{"zero never valid", domain.TransactionTypeAdjustment, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.RecordTransaction(context.Background(), ports.RecordRequest{
				AccountID: uuid.New(),
				Amount:    tt.amount,
				Type:      tt.txType,
				Reference: "ref-sign",
			})
			assertAppError(t, err, "LED_002")
		})
	}
}

func TestLedgerService_RecordTransaction_UnknownType(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.RecordTransaction(context.Background(), ports.RecordRequest{
		AccountID: uuid.New(),
		Amount:    100,
		Type:      domain.TransactionType("TRANSFER"),
		Reference: "ref-type",
	})
	assertAppError(t, err, "LED_003")
}

func TestLedgerService_RecordTransaction_CacheHitReturnsSettled(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildIdempotencyKey(accountID, "dep-002")

	cached := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusCompleted,
		Reference: "dep-002",
	}
	cachedJSON, _ := json.Marshal(cached)
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(cachedJSON, nil)

	txn, err := d.svc.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Reference: "dep-002",
	})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, txn.ID)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
}

func TestLedgerService_RecordTransaction_ReplayReturnsExisting(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildIdempotencyKey(accountID, "dep-003")

	existing := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Reference: "dep-003",
	}

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "dep-003").Return(existing, nil)

	txn, err := d.svc.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Reference: "dep-003",
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, txn.ID)
}

func TestLedgerService_RecordTransaction_InsertRaceReturnsWinner(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildIdempotencyKey(accountID, "dep-004")

	winner := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Reference: "dep-004",
		Status:    domain.TransactionStatusPending,
	}

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	// Both the lookup and the insert happened before the rival's commit:
	// the unique index is the last line of defense.
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "dep-004").Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{ID: accountID}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any()).Return(&pgconn.PgError{Code: "23505"})
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "dep-004").Return(winner, nil)

	txn, err := d.svc.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Reference: "dep-004",
	})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, txn.ID)
}

func TestLedgerService_RecordTransaction_AccountNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildIdempotencyKey(accountID, "dep-005")

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "dep-005").Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(nil, nil)

	_, err := d.svc.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Reference: "dep-005",
	})
	assertAppError(t, err, "LED_004")
}

func TestLedgerService_RecordTransaction_CacheFailureFallsThrough(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildIdempotencyKey(accountID, "dep-006")

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, errors.New("redis down"))
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "dep-006").Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{ID: accountID}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	txn, err := d.svc.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: accountID,
		Amount:    5000,
		Type:      domain.TransactionTypeDeposit,
		Reference: "dep-006",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
}

// ==================== SettleTransaction Tests ====================

func pendingTx(accountID uuid.UUID, amount int64, txType domain.TransactionType) *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Type:      txType,
		Status:    domain.TransactionStatusPending,
		Reference: "ref-" + uuid.NewString()[:8],
	}
}

func TestLedgerService_SettleTransaction_CompletedCredit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	txn := pendingTx(accountID, 5000, domain.TransactionTypeDeposit)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.accountRepo.EXPECT().ApplyBalance(ctx, tx, accountID, int64(5000)).Return(true, nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusCompleted).Return(nil)
	d.idempCache.EXPECT().Set(ctx, domain.BuildIdempotencyKey(accountID, txn.Reference), gomock.Any(), idempotencyTTL).Return(nil)
	d.events.EXPECT().PublishTransactionSettled(ctx, gomock.Any())

	settled, err := d.svc.SettleTransaction(ctx, txn.ID, domain.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, settled.Status)
	require.NotNil(t, settled.SettledAt)
}

func TestLedgerService_SettleTransaction_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	// Balance 0, debit of 500: the conditional update applies nothing.
	txn := pendingTx(accountID, -500, domain.TransactionTypeWithdrawal)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.accountRepo.EXPECT().ApplyBalance(ctx, tx, accountID, int64(-500)).Return(false, nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusFailed).Return(nil)

	settled, err := d.svc.SettleTransaction(ctx, txn.ID, domain.TransactionStatusCompleted)
	assert.Nil(t, settled)
	assertAppError(t, err, "LED_001")
}

func TestLedgerService_SettleTransaction_FailedOutcomeSkipsBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	txn := pendingTx(accountID, -500, domain.TransactionTypeWithdrawal)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusFailed).Return(nil)
	d.idempCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), idempotencyTTL).Return(nil)
	d.events.EXPECT().PublishTransactionSettled(ctx, gomock.Any())

	settled, err := d.svc.SettleTransaction(ctx, txn.ID, domain.TransactionStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, settled.Status)
}

func TestLedgerService_SettleTransaction_IdempotentReplay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	txn := pendingTx(accountID, 5000, domain.TransactionTypeDeposit)
	txn.Status = domain.TransactionStatusCompleted
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	// No ApplyBalance, no UpdateStatus: the replay is a read.

	settled, err := d.svc.SettleTransaction(ctx, txn.ID, domain.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, settled.ID)
}

func TestLedgerService_SettleTransaction_ConflictingOutcome(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTx(uuid.New(), 5000, domain.TransactionTypeDeposit)
	txn.Status = domain.TransactionStatusFailed
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)

	_, err := d.svc.SettleTransaction(ctx, txn.ID, domain.TransactionStatusCompleted)
	assertAppError(t, err, "SUB_001")
}

func TestLedgerService_SettleTransaction_InvalidOutcome(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.SettleTransaction(context.Background(), uuid.New(), domain.TransactionStatusPending)
	assertAppError(t, err, "VAL_001")
}

func TestLedgerService_SettleTransaction_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txID).Return(nil, nil)

	_, err := d.svc.SettleTransaction(ctx, txID, domain.TransactionStatusCompleted)
	assertAppError(t, err, "LED_004")
}

// ==================== GetBalance / Reconcile Tests ====================

func TestLedgerService_GetBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID: accountID, WalletBalance: 12500,
	}, nil)

	balance, err := d.svc.GetBalance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), balance)
}

func TestLedgerService_FindByReference(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	existing := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Reference: "sub:abc",
		Status:    domain.TransactionStatusCompleted,
	}
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "sub:abc").Return(existing, nil)

	found, err := d.svc.FindByReference(ctx, accountID, "sub:abc")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, found.ID)
}

func TestLedgerService_FindByReference_None(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	d.txRepo.EXPECT().GetByReference(ctx, accountID, "missing").Return(nil, nil)

	found, err := d.svc.FindByReference(ctx, accountID, "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLedgerService_Reconcile_Consistent(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID: accountID, WalletBalance: 4500,
	}, nil)
	d.txRepo.EXPECT().SumCompletedByAccount(ctx, accountID).Return(int64(4500), nil)

	result, err := d.svc.Reconcile(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, int64(4500), result.StoredBalance)
	assert.Equal(t, int64(4500), result.CompletedSum)
}

func TestLedgerService_Reconcile_Drift(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID: accountID, WalletBalance: 4500,
	}, nil)
	d.txRepo.EXPECT().SumCompletedByAccount(ctx, accountID).Return(int64(4000), nil)

	result, err := d.svc.Reconcile(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, result.Consistent)
}
