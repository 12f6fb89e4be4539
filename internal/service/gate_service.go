package service

import (
	"context"
	"fmt"

	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GateService implements ports.AccountGate. Account state can change
// concurrently (an admin can revoke approval between form render and submit),
// so every evaluation reads the current account record. Denials are typed
// results, not errors; only infrastructure failures surface as errors.
type GateService struct {
	accountRepo ports.AccountRepository
	log         zerolog.Logger
}

// NewGateService creates a new GateService.
func NewGateService(accountRepo ports.AccountRepository, log zerolog.Logger) *GateService {
	return &GateService{accountRepo: accountRepo, log: log}
}

// CanPerform evaluates whether the account may perform the action category.
func (s *GateService) CanPerform(ctx context.Context, accountID uuid.UUID, action domain.Action) (domain.Decision, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return domain.Decision{}, apperror.InternalError(fmt.Errorf("read account state: %w", err))
	}
	if account == nil {
		return domain.Decision{}, apperror.ErrNotFound("account")
	}

	decision := evaluate(account, action)
	if !decision.Allowed {
		s.log.Debug().
			Str("account_id", accountID.String()).
			Str("action", string(action)).
			Str("reason_code", decision.ReasonCode).
			Msg("gate denied action")
	}
	return decision, nil
}

func evaluate(account *domain.Account, action domain.Action) domain.Decision {
	switch action {
	case domain.ActionSellAsset:
		if account.KYCStatus != domain.KYCStatusApproved {
			return domain.Deny(domain.ReasonKYCRequired, "complete KYC verification to sell assets")
		}
		return domain.Allow()

	case domain.ActionWithdraw:
		if account.KYCStatus != domain.KYCStatusApproved {
			return domain.Deny(domain.ReasonKYCRequired, "complete KYC verification to withdraw")
		}
		switch account.AccountStatus {
		case domain.AccountStatusSuspended:
			return domain.Deny(domain.ReasonAccountSuspended, "account is suspended")
		case domain.AccountStatusBlocked:
			return domain.Deny(domain.ReasonAccountBlocked, "account is blocked")
		}
		return domain.Allow()

	case domain.ActionDeposit:
		if account.IsBlocked() {
			return domain.Deny(domain.ReasonAccountBlocked, "account is blocked")
		}
		return domain.Allow()

	case domain.ActionAdminAction:
		// Authority is verified against the current record, never a prior
		// session.
		if !account.IsAdmin() {
			return domain.Deny(domain.ReasonAdminRequired, "admin authority required")
		}
		return domain.Allow()

	default:
		return domain.Deny("unknown_action", "unknown action category")
	}
}
