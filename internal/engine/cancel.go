package engine

import (
	"time"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/performance"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

func (e *Engine) cancelVault(s *session, req CancelVault, resp *Response) error {
	v, err := loadVault(s, req.VaultID)
	if err != nil {
		return err
	}
	if req.Sender != v.Owner && !s.cfg.IsAdmin(req.Sender) {
		return NewUnauthorizedError()
	}
	if v.IsCancelled() {
		return NewPreconditionError(v.ID, "vault is already cancelled")
	}

	// An outstanding swap keeps its amount in the balance until the
	// resume settles or returns it.
	cont, err := findContinuation(s, v.ID)
	if err != nil {
		return err
	}
	reserved := committedAmount(cont)
	refund, err := v.Balance.Sub(reserved)
	if err != nil {
		return NewFatalError(v.ID, err)
	}

	cancelled := event.Cancelled{}
	if reserved.IsPositive() {
		r := coin.New(v.SourceDenom(), reserved)
		cancelled.Reserved = &r
		resp.attr("reserved_amount", r.String())
	}
	if err := s.emit(v.ID, cancelled); err != nil {
		return err
	}

	// The due date is projected from the balance before it is refunded.
	if v.EscrowedAmount.IsPositive() {
		due, err := performance.ExpectedCompletionDate(v, s.now)
		if err != nil {
			return NewFatalError(v.ID, err)
		}
		if err := s.tx.SaveDisburseEscrowTask(s.ctx, v.ID, due); err != nil {
			return err
		}
		resp.attr("escrow_due", due.Format(time.RFC3339))
	}

	if refund.IsPositive() {
		resp.add(send(v.ID, v.Owner, refund))
	}
	resp.attr("refunded_amount", refund.String())

	tr, err := loadTrigger(s, v.ID)
	if err != nil {
		return err
	}
	if tr != nil {
		if p, ok := tr.Config.(trigger.Price); ok && p.OrderIdx != "" {
			resp.add(abandonOrder(v.ID, p.OrderIdx)...)
		}
		if err := s.tx.DeleteTrigger(s.ctx, v.ID); err != nil {
			return err
		}
	}

	v.Status = vault.StatusCancelled
	v.Balance = coin.New(v.Balance.Denom, reserved)
	return s.tx.UpdateVault(s.ctx, v)
}

// releaseReserved returns the amount a cancelled vault kept back for an
// outstanding call that did not settle.
func releaseReserved(s *session, v *vault.Vault, cont *Continuation, resp *Response) error {
	reserved := committedAmount(cont)
	if !reserved.IsPositive() {
		return nil
	}
	rest, err := v.Balance.Sub(reserved)
	if err != nil {
		return NewFatalError(v.ID, err)
	}
	resp.add(send(v.ID, v.Owner, coin.New(v.Balance.Denom, reserved)))
	resp.attr("refunded_amount", coin.New(v.Balance.Denom, reserved).String())
	v.Balance = rest
	cont.Committed = false
	return nil
}
