package engine

import (
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/performance"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// disbursementCalls splits amount of the target denom across the vault's
// destinations.
//
// Each share is floor(amount * allocation), computed independently, so the
// shares may sum to less than amount. The difference stays in the ledger
// account. Transfer destinations get a plain send; follow-up destinations
// get a reported call and a matching pending action, in destination order.
func disbursementCalls(v *vault.Vault, amount math.Int) ([]Call, []PendingAction) {
	var (
		calls   []Call
		pending []PendingAction
	)
	for i, d := range v.Destinations {
		share := coin.MulDec(amount, d.Allocation)
		if !share.IsPositive() {
			continue
		}
		funds := coin.New(v.TargetDenom, share)

		var msg Msg
		switch a := d.Action.(type) {
		case vault.Delegate:
			msg = DelegateMsg{Delegator: d.Address, Validator: a.Validator, Amount: funds}
		case vault.Invoke:
			msg = InvokeMsg{Contract: d.Address, Msg: a.Msg, Funds: []coin.Coin{funds}}
		default:
			calls = append(calls, send(v.ID, d.Address, funds))
			continue
		}

		call := Call{
			VaultID: v.ID,
			Msg:     msg,
			ReplyOn: ReplyAlways,
			ReplyID: ReplyAfterPostExecutionAction,
		}
		calls = append(calls, call)
		pending = append(pending, PendingAction{
			DestinationIndex: i,
			Call:             call,
			Funds:            []coin.Coin{funds},
		})
	}
	return calls, pending
}

// feeCalls splits fee across the fee collectors by allocation.
func feeCalls(vaultID uint64, cfg vault.Config, fee coin.Coin) []Call {
	if !fee.IsPositive() {
		return nil
	}
	var calls []Call
	for _, fc := range cfg.FeeCollectors {
		share := coin.MulDec(fee.Amount, fc.Allocation)
		if share.IsPositive() {
			calls = append(calls, send(vaultID, fc.Address, coin.New(fee.Denom, share)))
		}
	}
	return calls
}

// reschedule replaces the trigger that just fired.
//
// A time trigger is advanced from its own target time, not from now, so
// periods missed while the vault was waiting are executed in turn. A price
// trigger is followed by a time trigger one interval from now. When the
// vault no longer needs a trigger and still holds escrow, the escrow is
// scheduled for release at the expected completion date instead.
func reschedule(s *session, v *vault.Vault, fired trigger.Config) error {
	if !v.ShouldContinue() {
		return scheduleEscrowRelease(s, v)
	}

	var (
		next time.Time
		err  error
	)
	switch c := fired.(type) {
	case trigger.Time:
		next, err = v.Interval.Next(c.TargetTime)
	default:
		next, err = v.Interval.Next(s.now)
	}
	if err != nil {
		return NewFatalError(v.ID, fmt.Errorf("next target time: %w", err))
	}
	return s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: v.ID, Config: trigger.Time{TargetTime: next}})
}

// scheduleEscrowRelease records the disburse-escrow task for a vault that
// has stopped executing with escrow outstanding.
func scheduleEscrowRelease(s *session, v *vault.Vault) error {
	if !v.EscrowedAmount.IsPositive() {
		return nil
	}
	due, err := performance.ExpectedCompletionDate(v, s.now)
	if err != nil {
		return NewFatalError(v.ID, err)
	}
	return s.tx.SaveDisburseEscrowTask(s.ctx, v.ID, due)
}

// loadVault reads a vault, mapping a miss to NOT_FOUND.
func loadVault(s *session, id uint64) (*vault.Vault, error) {
	v, err := s.tx.GetVault(s.ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewNotFoundError("vault", id)
	}
	return v, err
}

// loadTrigger reads the vault's trigger, returning nil when there is none.
func loadTrigger(s *session, vaultID uint64) (*trigger.Trigger, error) {
	tr, err := s.tx.GetTrigger(s.ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return tr, err
}
