package handler

import (
	"wallet-settlement-core/internal/adapter/http/dto"
	"wallet-settlement-core/internal/adapter/http/middleware"
	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"
	"wallet-settlement-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// SubmissionHandler handles the account-holder side of the submission queue.
type SubmissionHandler struct {
	submissionSvc ports.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionSvc ports.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionSvc: submissionSvc}
}

// Submit handles POST /api/v1/submissions.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	kind, ok := domain.ParseSubmissionKind(req.Kind)
	if !ok {
		response.Error(c, apperror.ErrInvalidSubmissionKind())
		return
	}

	sub, err := h.submissionSvc.SubmitClaim(c.Request.Context(), accountID, kind, domain.SubmissionPayload{
		ClaimedUnits: req.ClaimedUnits,
		RateMinor:    req.RateMinor,
		EvidenceRef:  req.EvidenceRef,
		DocumentType: req.DocumentType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toSubmissionResponse(sub))
}

// Resubmit handles POST /api/v1/submissions/kyc/resubmit. Only valid after a
// rejection; a new pending record is created, the rejected one stays closed.
func (h *SubmissionHandler) Resubmit(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, err := h.submissionSvc.Resubmit(c.Request.Context(), accountID, domain.SubmissionPayload{
		EvidenceRef:  req.EvidenceRef,
		DocumentType: req.DocumentType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toSubmissionResponse(sub))
}

// List handles GET /api/v1/submissions.
func (h *SubmissionHandler) List(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	subs, err := h.submissionSvc.ListByAccount(c.Request.Context(), accountID)
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

// toSubmissionResponse converts domain.Submission to DTO.
func toSubmissionResponse(s *domain.Submission) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		ID:           s.ID.String(),
		AccountID:    s.AccountID.String(),
		Kind:         string(s.Kind),
		Status:       string(s.Status),
		ClaimedUnits: s.Payload.ClaimedUnits,
		RateMinor:    s.Payload.RateMinor,
		Notes:        s.Notes,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.Kind.IsValueBearing() {
		resp.CreditedAmount = s.Payload.CreditedAmount()
	}
	if s.LinkedTransactionID != nil {
		id := s.LinkedTransactionID.String()
		resp.LinkedTransactionID = &id
	}
	if s.ReviewedAt != nil {
		t := s.ReviewedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ReviewedAt = &t
	}
	return resp
}
