package handler

import (
	"strconv"

	"wallet-settlement-core/internal/adapter/http/dto"
	"wallet-settlement-core/internal/adapter/http/middleware"
	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"
	"wallet-settlement-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
	gate      ports.AccountGate
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, gate ports.AccountGate) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc, gate: gate}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, offset := paginationParams(c)
	txns, err := h.ledgerSvc.ListTransactions(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	response.OK(c, out)
}

// Withdraw handles POST /api/v1/wallet/withdrawals. The gate is consulted at
// the moment of the request, then the debit is recorded and settled. An
// insufficient balance fails the transaction, it never partially applies.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	h.debit(c, domain.ActionWithdraw, domain.TransactionTypeWithdrawal, req.Amount, req.Reference)
}

// Purchase handles POST /api/v1/wallet/purchases.
func (h *WalletHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	h.debit(c, domain.ActionWithdraw, domain.TransactionTypePurchase, req.Amount, req.Reference)
}

func (h *WalletHandler) debit(c *gin.Context, action domain.Action, txType domain.TransactionType, amount int64, reference string) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	decision, err := h.gate.CanPerform(c.Request.Context(), accountID, action)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !decision.Allowed {
		response.Error(c, apperror.ErrAccessDenied(decision.ReasonCode, decision.Reason))
		return
	}

	txn, err := h.ledgerSvc.RecordTransaction(c.Request.Context(), ports.RecordRequest{
		AccountID: accountID,
		Amount:    -amount,
		Type:      txType,
		Reference: reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled, err := h.ledgerSvc.SettleTransaction(c.Request.Context(), txn.ID, domain.TransactionStatusCompleted)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(settled))
}

// GateCheck handles GET /api/v1/wallet/gate/:action. It exposes the gate
// decision so the UI can disable actions up front; the authoritative check
// still runs on every mutating call.
func (h *WalletHandler) GateCheck(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	action, ok := domain.ParseAction(c.Param("action"))
	if !ok {
		response.Error(c, apperror.Validation("unknown action"))
		return
	}

	decision, err := h.gate.CanPerform(c.Request.Context(), accountID, action)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.GateCheckResponse{
		Action:     string(action),
		Allowed:    decision.Allowed,
		ReasonCode: decision.ReasonCode,
		Reason:     decision.Reason,
	})
}

// paginationParams reads limit/offset query params with sane bounds.
func paginationParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:        tx.ID.String(),
		Amount:    tx.Amount,
		Type:      string(tx.Type),
		Status:    string(tx.Status),
		Reference: tx.Reference,
		CreatedAt: tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if tx.SettledAt != nil {
		s := tx.SettledAt.Format("2006-01-02T15:04:05Z07:00")
		resp.SettledAt = &s
	}
	return resp
}
