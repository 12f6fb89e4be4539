package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionKind identifies the kind of externally-sourced claim.
type SubmissionKind string

const (
	SubmissionKindGiftCard     SubmissionKind = "GIFT_CARD"
	SubmissionKindKYC          SubmissionKind = "KYC"
	SubmissionKindDepositProof SubmissionKind = "DEPOSIT_PROOF"
)

// ParseSubmissionKind validates a submission kind supplied over the wire.
func ParseSubmissionKind(s string) (SubmissionKind, bool) {
	switch SubmissionKind(s) {
	case SubmissionKindGiftCard, SubmissionKindKYC, SubmissionKindDepositProof:
		return SubmissionKind(s), true
	}
	return "", false
}

// IsValueBearing returns true if approving this kind credits the wallet.
func (k SubmissionKind) IsValueBearing() bool {
	return k == SubmissionKindGiftCard || k == SubmissionKindDepositProof
}

// LedgerType returns the transaction type used when this kind is approved.
func (k SubmissionKind) LedgerType() TransactionType {
	if k == SubmissionKindDepositProof {
		return TransactionTypeDeposit
	}
	return TransactionTypeSale
}

// SubmissionStatus represents the adjudication state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// IsTerminal returns true once the submission has been adjudicated. Terminal
// records are never reopened; a rejected KYC claim spawns a new submission.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

// SubmissionPayload is the kind-specific claim. For value-bearing kinds the
// valuation rate is locked in at submission time, so a multi-day review queue
// cannot drift the credited amount.
type SubmissionPayload struct {
	ClaimedUnits int64  `json:"claimed_units,omitempty"` // e.g. gift card face units
	RateMinor    int64  `json:"rate_minor,omitempty"`    // minor currency units per claimed unit
	EvidenceRef  string `json:"evidence_ref,omitempty"`  // pointer to uploaded evidence
	DocumentType string `json:"document_type,omitempty"` // KYC document kind
}

// CreditedAmount computes the wallet credit from the valuation captured at
// submission time.
func (p SubmissionPayload) CreditedAmount() int64 {
	return p.ClaimedUnits * p.RateMinor
}

// Submission is an unverified claim of external value or identity evidence
// awaiting adjudication. It is created by the account holder and mutated
// exactly once, by an adjudicator.
type Submission struct {
	ID                  uuid.UUID         `json:"id"`
	AccountID           uuid.UUID         `json:"account_id"`
	Kind                SubmissionKind    `json:"kind"`
	Payload             SubmissionPayload `json:"payload"`
	Status              SubmissionStatus  `json:"status"`
	AdjudicatorID       *uuid.UUID        `json:"adjudicator_id,omitempty"`
	Notes               string            `json:"notes,omitempty"`
	LinkedTransactionID *uuid.UUID        `json:"linked_transaction_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	ReviewedAt          *time.Time        `json:"reviewed_at,omitempty"`
}

// LedgerReference derives the idempotency reference for the transaction
// created on approval. Keying it by submission ID makes approval replays
// (duplicate admin clicks, crash recovery) converge on one credit.
func (s *Submission) LedgerReference() string {
	return "sub:" + s.ID.String()
}

// NewSubmission builds a pending submission for an account.
func NewSubmission(accountID uuid.UUID, kind SubmissionKind, payload SubmissionPayload) *Submission {
	return &Submission{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Payload:   payload,
		Status:    SubmissionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
