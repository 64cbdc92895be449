package engine

import (
	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// afterSwap settles a swap (or a limit order withdrawal) against the
// vault.
//
// On success the sold amount leaves the balance, the automation fee is
// taken from the received amount, escrow is withheld from the rest when
// the vault has a baseline, and the remainder is disbursed to the
// destinations ahead of the fee collectors. On failure the fire is
// recorded as skipped, and a cancelled vault returns the amount it held
// back for the swap to the owner. Either way a live vault gets its next trigger.
func (e *Engine) afterSwap(s *session, reply Reply, resp *Response) error {
	cont, err := loadContinuation(s, reply.VaultID)
	if err != nil {
		return err
	}
	v, err := loadVault(s, reply.VaultID)
	if err != nil {
		return err
	}

	if reply.Result.OK() {
		if err := e.settleSwap(s, v, cont, reply.Result.Received, resp); err != nil {
			return err
		}
	} else {
		reason := event.ClassifySwapFailure(reply.Result.Error)
		if err := s.emit(v.ID, event.ExecutionSkipped{Reason: reason}); err != nil {
			return err
		}
		s.logger.Info("swap failed", "vault_id", v.ID, "reason", reason.Kind, "error", reply.Result.Error)
		if v.IsCancelled() {
			if err := releaseReserved(s, v, cont, resp); err != nil {
				return err
			}
		}
		if err := s.tx.DeleteContinuation(s.ctx, v.ID); err != nil {
			return err
		}
	}

	if !v.IsCancelled() && cont.Trigger != nil {
		if err := reschedule(s, v, cont.Trigger.Config); err != nil {
			return err
		}
	}
	return s.tx.UpdateVault(s.ctx, v)
}

func (e *Engine) settleSwap(s *session, v *vault.Vault, cont *Continuation, received coin.Coin, resp *Response) error {
	if received.Denom == "" {
		received = coin.Zero(v.TargetDenom)
	}

	rest, err := v.Balance.Sub(cont.SwapAmount)
	if err != nil {
		return NewFatalError(v.ID, err)
	}
	v.Balance = rest
	cont.Committed = false
	v.SwappedAmount = v.SwappedAmount.Add(cont.SwapAmount)
	v.ReceivedAmount = v.ReceivedAmount.Add(received.Amount)
	if v.StartedAt == nil {
		started := s.now
		v.StartedAt = &started
	}
	if !v.IsCancelled() && v.HasLowFunds() {
		v.Status = vault.StatusInactive
	}

	fee := coin.MulDec(received.Amount, s.cfg.AutomationFeePercent)
	net := coin.SubFloor(received.Amount, fee)
	escrow := math.ZeroInt()
	if v.PerformanceAssessment != nil {
		escrow = coin.MulDec(net, v.EscrowLevel)
		v.EscrowedAmount = v.EscrowedAmount.Add(escrow)
	}

	err = s.emit(v.ID, event.ExecutionCompleted{
		Sent:     coin.New(v.SourceDenom(), cont.SwapAmount),
		Received: coin.New(v.TargetDenom, received.Amount),
		Fee:      coin.New(v.TargetDenom, fee),
	})
	if err != nil {
		return err
	}

	calls, pending := disbursementCalls(v, coin.SubFloor(net, escrow))
	resp.add(calls...)
	resp.add(feeCalls(v.ID, s.cfg, coin.New(v.TargetDenom, fee))...)
	resp.attr("received", received.String())
	resp.attr("fee", fee.String())
	resp.attr("escrowed", escrow.String())

	cont.Pending = pending
	return settle(s, cont)
}
