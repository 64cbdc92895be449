package engine

import (
	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/performance"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// executeTrigger fires a due trigger.
//
// The trigger is deleted before the swap is issued, so a second fire for
// the same vault fails its precondition until the swap's result has been
// handled and the next trigger saved.
func (e *Engine) executeTrigger(s *session, req ExecuteTrigger, resp *Response) error {
	if s.cfg.Paused {
		return NewPreconditionError(req.VaultID, "contract is paused")
	}
	v, err := loadVault(s, req.VaultID)
	if err != nil {
		return err
	}
	if v.IsCancelled() {
		return NewPreconditionError(v.ID, "vault is already cancelled")
	}
	tr, err := loadTrigger(s, v.ID)
	if err != nil {
		return err
	}
	if tr == nil {
		return NewPreconditionError(v.ID, "no trigger found for vault %d", v.ID)
	}
	busy, err := hasContinuation(s, v.ID)
	if err != nil {
		return err
	}
	if busy {
		return NewPreconditionError(v.ID, "vault %d has an execution in progress", v.ID)
	}

	switch c := tr.Config.(type) {
	case trigger.Time:
		if !tr.IsDue(s.now) {
			return NewPreconditionError(v.ID, "trigger execution time has not yet elapsed")
		}
	case trigger.Price:
		filled, err := e.prices.OrderFilled(s.ctx, c.OrderIdx)
		if err != nil {
			return NewPreconditionError(v.ID, "unable to query order %s: %v", c.OrderIdx, err)
		}
		if !filled {
			return NewPreconditionError(v.ID, "target price has not been met")
		}
	}

	if err := s.tx.DeleteTrigger(s.ctx, v.ID); err != nil {
		return err
	}
	if v.Status == vault.StatusScheduled {
		v.Status = vault.StatusActive
	}

	if c, ok := tr.Config.(trigger.Price); ok {
		return e.claimLimitOrder(s, v, *tr, c, resp)
	}

	price, err := e.prices.Quote(s.ctx, v.SourceDenom(), v.TargetDenom, v.Route)
	if err != nil {
		reason := event.SkipReason{Kind: event.SkipSlippageQueryError, Message: err.Error()}
		if v.PerformanceAssessment != nil {
			if err := s.emit(v.ID, event.SimulatedExecutionSkipped{Reason: reason}); err != nil {
				return err
			}
		}
		return e.skip(s, v, tr.Config, reason)
	}

	err = s.emit(v.ID, event.ExecutionTriggered{
		BaseDenom:  v.SourceDenom(),
		QuoteDenom: v.TargetDenom,
		AssetPrice: price,
	})
	if err != nil {
		return err
	}

	if v.PerformanceAssessment != nil {
		if sim, ok := performance.SimulateStandard(v, price, s.cfg.AutomationFeePercent); ok {
			err := s.emit(v.ID, event.SimulatedExecutionCompleted{Sent: sim.Sent, Received: sim.Received, Fee: sim.Fee})
			if err != nil {
				return err
			}
		}
	}

	// An inactive vault only fires to advance its baseline.
	if v.Status == vault.StatusInactive {
		if err := reschedule(s, v, tr.Config); err != nil {
			return err
		}
		return s.tx.UpdateVault(s.ctx, v)
	}

	swapAmount := v.NextSwapAmount()
	if v.SwapAdjustment != nil {
		swapAmount = v.SwapAdjustment.Adjust(swapAmount, price)
		if !swapAmount.IsPositive() {
			return e.skip(s, v, tr.Config, event.SkipReason{Kind: event.SkipSwapAmountAdjustedToZero})
		}
		swapAmount = coin.MinInt(swapAmount, v.Balance.Amount)
	}
	if !swapAmount.IsPositive() {
		return e.skip(s, v, tr.Config, event.SkipReason{Kind: event.SkipInsufficientFunds})
	}
	if v.PriceThresholdExceeded(swapAmount, price) {
		return e.skip(s, v, tr.Config, event.PriceThresholdExceeded(price))
	}

	err = saveContinuation(s, &Continuation{
		VaultID:    v.ID,
		RequestID:  s.requestID,
		Trigger:    tr,
		SwapAmount: swapAmount,
		Committed:  true,
		Price:      price,
	})
	if err != nil {
		return err
	}

	resp.add(Call{
		VaultID: v.ID,
		Msg: SwapMsg{
			Offer:             coin.New(v.SourceDenom(), swapAmount),
			TargetDenom:       v.TargetDenom,
			Route:             v.Route,
			SlippageTolerance: v.SlippageTolerance,
			MinimumReceive:    scaledMinimum(v, swapAmount),
		},
		ReplyOn: ReplyAlways,
		ReplyID: ReplyAfterSwap,
	})
	resp.attr("swap_amount", swapAmount.String())
	return s.tx.UpdateVault(s.ctx, v)
}

// claimLimitOrder withdraws a filled limit order. The withdrawal's result
// is handled like a swap fill.
func (e *Engine) claimLimitOrder(s *session, v *vault.Vault, tr trigger.Trigger, c trigger.Price, resp *Response) error {
	err := s.emit(v.ID, event.ExecutionTriggered{
		BaseDenom:  v.SourceDenom(),
		QuoteDenom: v.TargetDenom,
		AssetPrice: c.TargetPrice,
	})
	if err != nil {
		return err
	}
	err = saveContinuation(s, &Continuation{
		VaultID:    v.ID,
		RequestID:  s.requestID,
		Trigger:    &tr,
		SwapAmount: v.NextSwapAmount(),
		Committed:  true,
		Price:      c.TargetPrice,
	})
	if err != nil {
		return err
	}
	resp.add(Call{
		VaultID: v.ID,
		Msg:     WithdrawOrderMsg{OrderIdx: c.OrderIdx},
		ReplyOn: ReplyAlways,
		ReplyID: ReplyAfterSwap,
	})
	return s.tx.UpdateVault(s.ctx, v)
}

// skip records a fire that did not swap and schedules the next one.
func (e *Engine) skip(s *session, v *vault.Vault, fired trigger.Config, reason event.SkipReason) error {
	if err := s.emit(v.ID, event.ExecutionSkipped{Reason: reason}); err != nil {
		return err
	}
	s.logger.Info("execution skipped", "vault_id", v.ID, "reason", reason.Kind)
	if err := reschedule(s, v, fired); err != nil {
		return err
	}
	return s.tx.UpdateVault(s.ctx, v)
}

// scaledMinimum scales the minimum receive amount to an adjusted swap.
func scaledMinimum(v *vault.Vault, swapAmount math.Int) *math.Int {
	if v.MinimumReceiveAmount == nil {
		return nil
	}
	if swapAmount.Equal(v.SwapAmount) {
		m := *v.MinimumReceiveAmount
		return &m
	}
	m := coin.MulDec(*v.MinimumReceiveAmount, coin.Ratio(swapAmount, v.SwapAmount))
	return &m
}
