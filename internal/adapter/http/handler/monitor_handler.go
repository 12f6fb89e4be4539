package handler

import (
	"wallet-settlement-core/internal/adapter/http/dto"
	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"
	"wallet-settlement-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MonitorHandler receives confirmed deposits from the external deposit
// monitor. Authentication happens in middleware; redelivered webhooks
// converge on one ledger entry via the reference.
type MonitorHandler struct {
	ledgerSvc ports.LedgerService
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(ledgerSvc ports.LedgerService) *MonitorHandler {
	return &MonitorHandler{ledgerSvc: ledgerSvc}
}

// RecordDeposit handles POST /api/v1/monitor/deposits.
func (h *MonitorHandler) RecordDeposit(c *gin.Context) {
	var req dto.MonitorDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	txn, err := h.ledgerSvc.RecordTransaction(c.Request.Context(), ports.RecordRequest{
		AccountID: accountID,
		Amount:    req.Amount,
		Type:      domain.TransactionTypeDeposit,
		Reference: req.Reference,
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
