package engine

import (
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

func (e *Engine) deposit(s *session, req Deposit, resp *Response) error {
	if s.cfg.Paused {
		return NewValidationError("contract is paused")
	}
	if len(req.Funds) != 1 {
		return NewValidationError("received %d denoms but required exactly 1", len(req.Funds))
	}
	v, err := loadVault(s, req.VaultID)
	if err != nil {
		return err
	}
	if req.Address != v.Owner {
		return NewValidationError("provided an invalid address")
	}
	if v.IsCancelled() {
		return NewPreconditionError(v.ID, "vault is already cancelled")
	}
	funds := req.Funds[0]
	if funds.Denom != v.SourceDenom() {
		return NewValidationError("received asset with denom %s, but needed %s", funds.Denom, v.SourceDenom())
	}
	if !funds.IsPositive() {
		return NewValidationError("deposit amount must be greater than 0")
	}

	v.Balance = v.Balance.Add(funds.Amount)
	v.DepositedAmount = v.DepositedAmount.Add(funds.Amount)

	if v.Status == vault.StatusInactive && !v.HasLowFunds() {
		v.Status = vault.StatusActive
		existing, err := loadTrigger(s, v.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			err := s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: v.ID, Config: trigger.Time{TargetTime: s.now}})
			if err != nil {
				return err
			}
		}
		resp.attr("reactivated", "true")
	}

	if err := s.tx.UpdateVault(s.ctx, v); err != nil {
		return err
	}
	if err := s.emit(v.ID, event.FundsDeposited{Amount: funds}); err != nil {
		return err
	}
	resp.attr("balance", v.Balance.String())
	return nil
}
