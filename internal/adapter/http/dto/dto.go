package dto

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	AccountID     string `json:"account_id"`
	Email         string `json:"email"`
	KYCStatus     string `json:"kyc_status"`
	AccountStatus string `json:"account_status"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// WithdrawRequest is the request body for a withdrawal.
type WithdrawRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"` // minor units, debited from the wallet
	Reference string `json:"reference" binding:"required,max=100"`
}

// PurchaseRequest is the request body for an in-platform purchase.
type PurchaseRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"` // minor units, debited from the wallet
	Reference string `json:"reference" binding:"required,max=100"`
}

// GateCheckResponse reports whether the caller may perform an action.
type GateCheckResponse struct {
	Action     string `json:"action"`
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reason_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// BalanceResponse is the response for balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"` // minor currency units
}

// TransactionResponse is the response body for ledger entries.
type TransactionResponse struct {
	ID        string  `json:"id"`
	Amount    int64   `json:"amount"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Reference string  `json:"reference"`
	CreatedAt string  `json:"created_at"`
	SettledAt *string `json:"settled_at,omitempty"`
}

// SubmissionRequest is the request body for creating a submission.
type SubmissionRequest struct {
	Kind         string `json:"kind" binding:"required"`
	ClaimedUnits int64  `json:"claimed_units,omitempty"`
	RateMinor    int64  `json:"rate_minor,omitempty"`
	EvidenceRef  string `json:"evidence_ref,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
}

// ResubmitRequest is the request body for resubmitting KYC evidence.
type ResubmitRequest struct {
	EvidenceRef  string `json:"evidence_ref" binding:"required"`
	DocumentType string `json:"document_type" binding:"required"`
}

// RejectRequest carries the adjudicator's notes for a rejection.
type RejectRequest struct {
	Notes string `json:"notes" binding:"required,max=1000"`
}

// SubmissionResponse is the response body for submissions.
type SubmissionResponse struct {
	ID                  string  `json:"id"`
	AccountID           string  `json:"account_id"`
	Kind                string  `json:"kind"`
	Status              string  `json:"status"`
	ClaimedUnits        int64   `json:"claimed_units,omitempty"`
	RateMinor           int64   `json:"rate_minor,omitempty"`
	CreditedAmount      int64   `json:"credited_amount,omitempty"`
	Notes               string  `json:"notes,omitempty"`
	LinkedTransactionID *string `json:"linked_transaction_id,omitempty"`
	CreatedAt           string  `json:"created_at"`
	ReviewedAt          *string `json:"reviewed_at,omitempty"`
}

// MonitorDepositRequest is the webhook body from the deposit-detection
// collaborator.
type MonitorDepositRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"required,max=100"`
}
