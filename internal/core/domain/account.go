package domain

import (
	"time"

	"github.com/google/uuid"
)

// KYCStatus represents the verification state of an account.
type KYCStatus string

const (
	KYCStatusNotSubmitted KYCStatus = "NOT_SUBMITTED"
	KYCStatusPending      KYCStatus = "PENDING"
	KYCStatusApproved     KYCStatus = "APPROVED"
	KYCStatusRejected     KYCStatus = "REJECTED"
)

// CanTransitionTo is the single place KYC transitions are validated.
// not_submitted -> pending, pending -> approved|rejected, rejected -> pending
// (resubmission). Approved is terminal.
func (s KYCStatus) CanTransitionTo(next KYCStatus) bool {
	switch s {
	case KYCStatusNotSubmitted:
		return next == KYCStatusPending
	case KYCStatusPending:
		return next == KYCStatusApproved || next == KYCStatusRejected
	case KYCStatusRejected:
		return next == KYCStatusPending
	default:
		return false
	}
}

// AccountStatus represents the administrative state of an account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusBlocked   AccountStatus = "BLOCKED"
)

// Role represents the authority level of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Account represents a user's financial identity: balance, verification
// status and account status. WalletBalance is in minor currency units and is
// mutated only through the ledger's conditional update.
type Account struct {
	ID            uuid.UUID     `json:"id"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"` // Never expose
	WalletBalance int64         `json:"wallet_balance"`
	KYCStatus     KYCStatus     `json:"kyc_status"`
	AccountStatus AccountStatus `json:"account_status"`
	Role          Role          `json:"role"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsActive returns true if the account is in the active state.
func (a *Account) IsActive() bool {
	return a.AccountStatus == AccountStatusActive
}

// IsBlocked returns true if the account is blocked.
func (a *Account) IsBlocked() bool {
	return a.AccountStatus == AccountStatusBlocked
}

// IsAdmin returns true if the account carries admin authority.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// NewAccount builds the signup-time account: zero balance, KYC not submitted,
// active, user role.
func NewAccount(email, passwordHash string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  passwordHash,
		WalletBalance: 0,
		KYCStatus:     KYCStatusNotSubmitted,
		AccountStatus: AccountStatusActive,
		Role:          RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Action is a category of financial action that the gate evaluates.
type Action string

const (
	ActionSellAsset   Action = "sell_asset"
	ActionWithdraw    Action = "withdraw"
	ActionDeposit     Action = "deposit"
	ActionAdminAction Action = "admin_action"
)

// ParseAction validates an action name supplied over the wire.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionSellAsset, ActionWithdraw, ActionDeposit, ActionAdminAction:
		return Action(s), true
	}
	return "", false
}

// Gate denial reason codes. Denials are typed results, not errors.
const (
	ReasonKYCRequired      = "kyc_required"
	ReasonAccountSuspended = "account_suspended"
	ReasonAccountBlocked   = "account_blocked"
	ReasonAdminRequired    = "admin_required"
)

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reason_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denial carrying a machine-readable code and a human-readable
// reason the end user can act on.
func Deny(code, reason string) Decision {
	return Decision{Allowed: false, ReasonCode: code, Reason: reason}
}
