package handler

import (
	"wallet-settlement-core/internal/adapter/http/dto"
	"wallet-settlement-core/internal/adapter/http/middleware"
	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"
	"wallet-settlement-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the adjudication and reconciliation endpoints. The
// caller's admin authority is re-verified by the gate on every call, the JWT
// only identifies who is asking.
type AdminHandler struct {
	submissionSvc ports.SubmissionService
	ledgerSvc     ports.LedgerService
	gate          ports.AccountGate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(submissionSvc ports.SubmissionService, ledgerSvc ports.LedgerService, gate ports.AccountGate) *AdminHandler {
	return &AdminHandler{submissionSvc: submissionSvc, ledgerSvc: ledgerSvc, gate: gate}
}

// requireAdmin consults the gate for admin authority. Returns false after
// writing the error response.
func (h *AdminHandler) requireAdmin(c *gin.Context, accountID uuid.UUID) bool {
	decision, err := h.gate.CanPerform(c.Request.Context(), accountID, domain.ActionAdminAction)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if !decision.Allowed {
		response.Error(c, apperror.ErrAccessDenied(decision.ReasonCode, decision.Reason))
		return false
	}
	return true
}

// ListPending handles GET /api/v1/admin/submissions.
func (h *AdminHandler) ListPending(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	if !h.requireAdmin(c, accountID) {
		return
	}

	limit, offset := paginationParams(c)
	subs, err := h.submissionSvc.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.SubmissionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, toSubmissionResponse(&subs[i]))
	}
	response.OK(c, out)
}

// Approve handles POST /api/v1/admin/submissions/:id/approve.
func (h *AdminHandler) Approve(c *gin.Context) {
	adjudicatorID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid submission id"))
		return
	}

	sub, err := h.submissionSvc.Approve(c.Request.Context(), adjudicatorID, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toSubmissionResponse(sub))
}

// Reject handles POST /api/v1/admin/submissions/:id/reject.
func (h *AdminHandler) Reject(c *gin.Context) {
	adjudicatorID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid submission id"))
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, err := h.submissionSvc.Reject(c.Request.Context(), adjudicatorID, submissionID, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toSubmissionResponse(sub))
}

// Reconcile handles GET /api/v1/admin/reconcile/:account_id. Compares the
// stored balance against the sum of completed transactions.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	callerID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	if !h.requireAdmin(c, callerID) {
		return
	}

	accountID, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	result, err := h.ledgerSvc.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
