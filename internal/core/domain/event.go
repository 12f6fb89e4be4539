package domain

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types delivered at-least-once to the notification collaborator.
// Delivery is fire-and-forget: a failed delivery never rolls back core state.
const (
	EventTransactionSettled = "TRANSACTION_SETTLED"
	EventSubmissionApproved = "SUBMISSION_APPROVED"
	EventSubmissionRejected = "SUBMISSION_REJECTED"
)

// Event is the envelope sent to the notifier endpoint.
type Event struct {
	Type       string    `json:"event_type"`
	AccountID  uuid.UUID `json:"account_id"`
	EntityID   uuid.UUID `json:"entity_id"` // transaction or submission ID
	Amount     int64     `json:"amount,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AuditEntry is an immutable record of an adjudication decision. The rejected
// record itself is never mutated afterwards, so the audit trail is the only
// place reviewers' actions accumulate.
type AuditEntry struct {
	ID            uuid.UUID `json:"id"`
	AdjudicatorID uuid.UUID `json:"adjudicator_id"`
	SubmissionID  uuid.UUID `json:"submission_id"`
	Action        string    `json:"action"` // APPROVE | REJECT
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
