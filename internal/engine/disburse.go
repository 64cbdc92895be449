package engine

import (
	"errors"
	"time"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/performance"
	"github.com/PrismoFinance/bounties/internal/store"
)

// disburseEscrow releases a vault's escrow: the performance fee, priced
// from the TWAP, goes to the fee collectors and the rest to the vault's
// destinations. A vault with nothing escrowed succeeds without effect, so
// repeating the request is harmless.
func (e *Engine) disburseEscrow(s *session, req DisburseEscrow, resp *Response) error {
	if !s.cfg.IsExecutor(req.Sender) && !s.cfg.IsAdmin(req.Sender) {
		return NewUnauthorizedError()
	}
	v, err := loadVault(s, req.VaultID)
	if err != nil {
		return err
	}

	if !v.EscrowedAmount.IsPositive() {
		resp.attr("performance_fee", coin.Zero(v.TargetDenom).String())
		resp.attr("escrow_disbursed", coin.Zero(v.TargetDenom).String())
		return nil
	}

	task, err := s.tx.GetDisburseEscrowTask(s.ctx, v.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	case s.now.Before(task.DueAt):
		return NewPreconditionError(v.ID, "Escrow is not available to be disbursed until %s", task.DueAt.UTC().Format(time.RFC3339))
	}

	busy, err := hasContinuation(s, v.ID)
	if err != nil {
		return err
	}
	if busy {
		return NewPreconditionError(v.ID, "vault %d has an execution in progress", v.ID)
	}

	period := time.Duration(s.cfg.TwapPeriodSeconds) * time.Second
	price, err := e.prices.TWAP(s.ctx, v.SourceDenom(), v.TargetDenom, period, v.Route)
	if err != nil {
		return NewPreconditionError(v.ID, "unable to query twap price: %v", err)
	}

	fee := performance.Fee(v, price, s.cfg.PerformanceFeePercent)
	disbursed := coin.New(v.TargetDenom, coin.SubFloor(v.EscrowedAmount.Amount, fee.Amount))
	v.EscrowedAmount = coin.Zero(v.TargetDenom)

	err = s.emit(v.ID, event.EscrowDisbursed{AmountDisbursed: disbursed, PerformanceFee: fee})
	if err != nil {
		return err
	}
	if err := s.tx.DeleteDisburseEscrowTask(s.ctx, v.ID); err != nil {
		return err
	}

	calls, pending := disbursementCalls(v, disbursed.Amount)
	resp.add(calls...)
	resp.add(feeCalls(v.ID, s.cfg, fee)...)
	resp.attr("performance_fee", fee.String())
	resp.attr("escrow_disbursed", disbursed.String())

	if len(pending) > 0 {
		err := saveContinuation(s, &Continuation{
			VaultID:   v.ID,
			RequestID: s.requestID,
			Price:     price,
			Pending:   pending,
		})
		if err != nil {
			return err
		}
	}
	return s.tx.UpdateVault(s.ctx, v)
}
