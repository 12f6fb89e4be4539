package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Audit actions recorded for every adjudication decision.
const (
	auditActionApprove = "APPROVE"
	auditActionReject  = "REJECT"
)

// Valuation bounds for value-bearing claims. Both sit far below the int64
// range, so the units-times-rate product locked into the payload can never
// wrap into a bogus positive credit.
const (
	maxClaimedUnits = 1_000_000
	maxRateMinor    = 10_000_000 // minor units per claimed unit
)

// SubmissionServiceImpl implements ports.SubmissionService. Approval of a
// value-bearing claim is a two-phase sequence: the ledger write happens
// strictly before the status flip, and the ledger reference is derived from
// the submission ID. A failure between the phases leaves the submission
// pending; re-running approve replays the ledger write idempotently and then
// completes the flip, so the claim can never end up approved without its
// completed transaction, or credited twice.
type SubmissionServiceImpl struct {
	subRepo     ports.SubmissionRepository
	accountRepo ports.AccountRepository
	auditRepo   ports.AuditRepository
	gate        ports.AccountGate
	ledger      ports.LedgerService
	transactor  ports.DBTransactor
	events      ports.EventPublisher
	log         zerolog.Logger
}

// NewSubmissionService creates a new SubmissionServiceImpl.
func NewSubmissionService(
	subRepo ports.SubmissionRepository,
	accountRepo ports.AccountRepository,
	auditRepo ports.AuditRepository,
	gate ports.AccountGate,
	ledger ports.LedgerService,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	log zerolog.Logger,
) *SubmissionServiceImpl {
	return &SubmissionServiceImpl{
		subRepo:     subRepo,
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		gate:        gate,
		ledger:      ledger,
		transactor:  transactor,
		events:      events,
		log:         log,
	}
}

// SubmitClaim creates a pending submission for the account. The valuation
// rate for value-bearing kinds is locked into the payload here, so review
// latency cannot drift the credited amount.
func (s *SubmissionServiceImpl) SubmitClaim(ctx context.Context, accountID uuid.UUID, kind domain.SubmissionKind, payload domain.SubmissionPayload) (*domain.Submission, error) {
	if _, ok := domain.ParseSubmissionKind(string(kind)); !ok {
		return nil, apperror.ErrInvalidSubmissionKind()
	}
	if err := validatePayload(kind, payload); err != nil {
		return nil, err
	}

	if kind == domain.SubmissionKindKYC {
		return s.submitKYC(ctx, accountID, payload)
	}

	gateAction := domain.ActionSellAsset
	if kind == domain.SubmissionKindDepositProof {
		gateAction = domain.ActionDeposit
	}
	decision, err := s.gate.CanPerform(ctx, accountID, gateAction)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, apperror.ErrAccessDenied(decision.ReasonCode, decision.Reason)
	}

	sub := domain.NewSubmission(accountID, kind, payload)
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create submission: %w", err))
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("account_id", accountID.String()).
		Str("kind", string(kind)).
		Msg("submission created")

	return sub, nil
}

// submitKYC inserts the submission and flips the account's KYC status to
// pending in one storage transaction.
func (s *SubmissionServiceImpl) submitKYC(ctx context.Context, accountID uuid.UUID, payload domain.SubmissionPayload) (*domain.Submission, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if account.IsBlocked() {
		return nil, apperror.ErrAccessDenied(domain.ReasonAccountBlocked, "account is blocked")
	}
	if !account.KYCStatus.CanTransitionTo(domain.KYCStatusPending) {
		return nil, apperror.ErrConflictingState(
			fmt.Sprintf("KYC status %s does not permit a new submission", account.KYCStatus))
	}

	sub := domain.NewSubmission(accountID, domain.SubmissionKindKYC, payload)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.subRepo.CreateInTx(ctx, dbTx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create kyc submission: %w", err))
	}
	if err := s.accountRepo.UpdateKYCStatus(ctx, dbTx, accountID, domain.KYCStatusPending); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set kyc pending: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("account_id", accountID.String()).
		Msg("kyc submission created")

	return sub, nil
}

// Approve settles a claim. Authority is verified fresh against the current
// account record; duplicate approvals return the existing linked transaction
// unchanged.
func (s *SubmissionServiceImpl) Approve(ctx context.Context, adjudicatorID, submissionID uuid.UUID) (*domain.Submission, error) {
	if err := s.requireAdjudicator(ctx, adjudicatorID); err != nil {
		return nil, err
	}

	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("submission")
	}

	switch sub.Status {
	case domain.SubmissionStatusApproved:
		// Duplicate admin click or retried request: no second credit.
		return sub, nil
	case domain.SubmissionStatusRejected:
		return nil, apperror.ErrConflictingState("submission already rejected")
	}

	var linkedTxID *uuid.UUID
	if sub.Kind.IsValueBearing() {
		amount := sub.Payload.CreditedAmount()
		if amount <= 0 {
			return nil, apperror.ErrInvalidAmount()
		}

		// Phase 1: ledger write, keyed by the submission-derived reference.
		// Any failure here leaves the submission pending.
		txn, err := s.ledger.RecordTransaction(ctx, ports.RecordRequest{
			AccountID: sub.AccountID,
			Amount:    amount,
			Type:      sub.Kind.LedgerType(),
			Reference: sub.LedgerReference(),
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.ledger.SettleTransaction(ctx, txn.ID, domain.TransactionStatusCompleted); err != nil {
			return nil, err
		}
		linkedTxID = &txn.ID
	}

	// Phase 2: flip the submission (and for KYC, the account) in one storage
	// transaction.
	updated, err := s.flipApproved(ctx, sub, adjudicatorID, linkedTxID)
	if err != nil {
		// A rejection that slipped in between the phases wins the flip, but
		// the credit settled above has already moved money. Reverse it so a
		// rejected claim never keeps its payout.
		var appErr *apperror.AppError
		if linkedTxID != nil && errors.As(err, &appErr) && appErr.Code == "SUB_001" {
			if revErr := s.reverseCredit(ctx, sub); revErr != nil {
				s.log.Error().
					Err(revErr).
					Str("submission_id", sub.ID.String()).
					Msg("credit reversal failed, ledger holds a credit for a rejected submission")
			}
		}
		return nil, err
	}

	s.events.PublishSubmissionApproved(ctx, updated)

	s.log.Info().
		Str("submission_id", updated.ID.String()).
		Str("adjudicator_id", adjudicatorID.String()).
		Str("kind", string(updated.Kind)).
		Msg("submission approved")

	return updated, nil
}

// reverseCredit books the opposite of a claim's settled credit. The reference
// is derived from the submission ID, so a replay can never reverse twice.
func (s *SubmissionServiceImpl) reverseCredit(ctx context.Context, sub *domain.Submission) error {
	reversal, err := s.ledger.RecordTransaction(ctx, ports.RecordRequest{
		AccountID: sub.AccountID,
		Amount:    -sub.Payload.CreditedAmount(),
		Type:      domain.TransactionTypeAdjustment,
		Reference: sub.LedgerReference() + ":reversal",
	})
	if err != nil {
		return err
	}
	_, err = s.ledger.SettleTransaction(ctx, reversal.ID, domain.TransactionStatusCompleted)
	return err
}

func (s *SubmissionServiceImpl) flipApproved(ctx context.Context, sub *domain.Submission, adjudicatorID uuid.UUID, linkedTxID *uuid.UUID) (*domain.Submission, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	current, err := s.subRepo.GetByIDForUpdate(ctx, dbTx, sub.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock submission: %w", err))
	}
	if current == nil {
		return nil, apperror.ErrNotFound("submission")
	}
	if current.Status == domain.SubmissionStatusApproved {
		// A concurrent approve finished first; its result stands.
		return current, nil
	}
	if current.Status == domain.SubmissionStatusRejected {
		return nil, apperror.ErrConflictingState("submission already rejected")
	}

	if sub.Kind == domain.SubmissionKindKYC {
		account, err := s.accountRepo.GetByID(ctx, sub.AccountID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load account: %w", err))
		}
		if account == nil {
			return nil, apperror.ErrNotFound("account")
		}
		if !account.KYCStatus.CanTransitionTo(domain.KYCStatusApproved) {
			return nil, apperror.ErrConflictingState(
				fmt.Sprintf("KYC status %s cannot transition to approved", account.KYCStatus))
		}
		if err := s.accountRepo.UpdateKYCStatus(ctx, dbTx, sub.AccountID, domain.KYCStatusApproved); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set kyc approved: %w", err))
		}
	}

	if err := s.subRepo.MarkApproved(ctx, dbTx, sub.ID, adjudicatorID, linkedTxID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark approved: %w", err))
	}
	if err := s.auditRepo.Create(ctx, dbTx, &domain.AuditEntry{
		ID:            uuid.New(),
		AdjudicatorID: adjudicatorID,
		SubmissionID:  sub.ID,
		Action:        auditActionApprove,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("write audit entry: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	now := time.Now().UTC()
	updated := *current
	updated.Status = domain.SubmissionStatusApproved
	updated.AdjudicatorID = &adjudicatorID
	updated.LinkedTransactionID = linkedTxID
	updated.ReviewedAt = &now
	return &updated, nil
}

// Reject marks the submission rejected and stores the adjudicator's notes.
// No ledger effect.
func (s *SubmissionServiceImpl) Reject(ctx context.Context, adjudicatorID, submissionID uuid.UUID, notes string) (*domain.Submission, error) {
	if err := s.requireAdjudicator(ctx, adjudicatorID); err != nil {
		return nil, err
	}

	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("submission")
	}

	switch sub.Status {
	case domain.SubmissionStatusRejected:
		return sub, nil
	case domain.SubmissionStatusApproved:
		return nil, apperror.ErrConflictingState("submission already approved")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	current, err := s.subRepo.GetByIDForUpdate(ctx, dbTx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock submission: %w", err))
	}
	if current == nil {
		return nil, apperror.ErrNotFound("submission")
	}
	if current.Status == domain.SubmissionStatusRejected {
		return current, nil
	}
	if current.Status == domain.SubmissionStatusApproved {
		return nil, apperror.ErrConflictingState("submission already approved")
	}

	// An interrupted approval may already have written the claim's credit.
	// A settled credit means the money moved: the rejection must lose and the
	// approval replay must finish. An unsettled one is voided here so it can
	// never settle after the rejection.
	if sub.Kind.IsValueBearing() {
		credit, err := s.ledger.FindByReference(ctx, sub.AccountID, sub.LedgerReference())
		if err != nil {
			return nil, err
		}
		if credit != nil {
			if credit.Status == domain.TransactionStatusCompleted {
				return nil, apperror.ErrConflictingState("claim credit already settled, approval must complete")
			}
			if _, err := s.ledger.SettleTransaction(ctx, credit.ID, domain.TransactionStatusFailed); err != nil {
				return nil, err
			}
		}
	}

	if err := s.subRepo.MarkRejected(ctx, dbTx, submissionID, adjudicatorID, notes); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark rejected: %w", err))
	}
	if sub.Kind == domain.SubmissionKindKYC {
		if err := s.accountRepo.UpdateKYCStatus(ctx, dbTx, sub.AccountID, domain.KYCStatusRejected); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set kyc rejected: %w", err))
		}
	}
	if err := s.auditRepo.Create(ctx, dbTx, &domain.AuditEntry{
		ID:            uuid.New(),
		AdjudicatorID: adjudicatorID,
		SubmissionID:  submissionID,
		Action:        auditActionReject,
		Notes:         notes,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("write audit entry: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	now := time.Now().UTC()
	updated := *sub
	updated.Status = domain.SubmissionStatusRejected
	updated.AdjudicatorID = &adjudicatorID
	updated.Notes = notes
	updated.ReviewedAt = &now

	s.events.PublishSubmissionRejected(ctx, &updated)

	s.log.Info().
		Str("submission_id", submissionID.String()).
		Str("adjudicator_id", adjudicatorID.String()).
		Msg("submission rejected")

	return &updated, nil
}

// Resubmit creates a brand-new pending KYC submission after a rejection. The
// rejected record is preserved untouched for the audit trail.
func (s *SubmissionServiceImpl) Resubmit(ctx context.Context, accountID uuid.UUID, payload domain.SubmissionPayload) (*domain.Submission, error) {
	if err := validatePayload(domain.SubmissionKindKYC, payload); err != nil {
		return nil, err
	}

	latest, err := s.subRepo.LatestByKind(ctx, accountID, domain.SubmissionKindKYC)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load latest kyc submission: %w", err))
	}
	if latest == nil {
		return nil, apperror.ErrConflictingState("no KYC submission to resubmit")
	}
	if latest.Status != domain.SubmissionStatusRejected {
		return nil, apperror.ErrConflictingState(
			fmt.Sprintf("latest KYC submission is %s, only rejected submissions can be resubmitted", latest.Status))
	}

	return s.submitKYC(ctx, accountID, payload)
}

// ListByAccount returns all submissions for an account, newest first.
func (s *SubmissionServiceImpl) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Submission, error) {
	subs, err := s.subRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list submissions: %w", err))
	}
	return subs, nil
}

// ListPending returns the review queue for admin tooling.
func (s *SubmissionServiceImpl) ListPending(ctx context.Context, limit, offset int) ([]domain.Submission, error) {
	subs, err := s.subRepo.ListByStatus(ctx, domain.SubmissionStatusPending, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending submissions: %w", err))
	}
	return subs, nil
}

// requireAdjudicator fails closed unless the gate allows admin_action for the
// caller right now.
func (s *SubmissionServiceImpl) requireAdjudicator(ctx context.Context, adjudicatorID uuid.UUID) error {
	decision, err := s.gate.CanPerform(ctx, adjudicatorID, domain.ActionAdminAction)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return apperror.ErrAccessDenied(decision.ReasonCode, decision.Reason)
	}
	return nil
}

func validatePayload(kind domain.SubmissionKind, payload domain.SubmissionPayload) error {
	switch {
	case kind.IsValueBearing():
		if payload.ClaimedUnits <= 0 {
			return apperror.Validation("claimed_units must be positive")
		}
		if payload.ClaimedUnits > maxClaimedUnits {
			return apperror.Validation(fmt.Sprintf("claimed_units exceeds maximum of %d", maxClaimedUnits))
		}
		if payload.RateMinor <= 0 {
			return apperror.Validation("rate_minor must be positive")
		}
		if payload.RateMinor > maxRateMinor {
			return apperror.Validation(fmt.Sprintf("rate_minor exceeds maximum of %d", maxRateMinor))
		}
		if payload.EvidenceRef == "" {
			return apperror.Validation("evidence_ref is required")
		}
	case kind == domain.SubmissionKindKYC:
		if payload.DocumentType == "" {
			return apperror.Validation("document_type is required")
		}
		if payload.EvidenceRef == "" {
			return apperror.Validation("evidence_ref is required")
		}
	}
	return nil
}
