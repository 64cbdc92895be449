package engine

import (
	"encoding/json"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

func (e *Engine) updateVault(s *session, req UpdateVault, resp *Response) error {
	v, err := loadVault(s, req.VaultID)
	if err != nil {
		return err
	}
	if req.Sender != v.Owner {
		return NewUnauthorizedError()
	}
	if v.IsCancelled() {
		return NewPreconditionError(v.ID, "vault is already cancelled")
	}
	if req.SwapAmount != nil && req.MinimumReceiveAmount != nil {
		return NewValidationError("cannot update swap amount and minimum receive amount at the same time.")
	}
	if req.SwapAmount != nil && req.SwapAdjustment != nil {
		return NewValidationError("cannot update swap amount and swap adjustment strategy at the same time.")
	}

	var updates []event.FieldUpdate
	record := func(field, oldValue, newValue string) {
		updates = append(updates, event.FieldUpdate{Field: field, OldValue: oldValue, NewValue: newValue})
		resp.attr(field, newValue)
	}

	if req.SwapAmount != nil {
		if err := vault.ValidateSwapAmount(*req.SwapAmount); err != nil {
			return validationFrom(err)
		}
		ratio := coin.Ratio(*req.SwapAmount, v.SwapAmount)
		if v.MinimumReceiveAmount != nil {
			scaled := coin.MulDec(*v.MinimumReceiveAmount, ratio)
			record("minimum_receive_amount", v.MinimumReceiveAmount.String(), scaled.String())
			v.MinimumReceiveAmount = &scaled
		}
		if v.SwapAdjustment != nil {
			adj := *v.SwapAdjustment
			adj.BaseReceiveAmount = coin.MulDec(adj.BaseReceiveAmount, ratio)
			record("swap_adjustment_strategy", encodeValue(v.SwapAdjustment), encodeValue(adj))
			v.SwapAdjustment = &adj
		}
		record("swap_amount", v.SwapAmount.String(), req.SwapAmount.String())
		v.SwapAmount = *req.SwapAmount
	}

	if req.Label != nil {
		label, err := vault.NormalizeLabel(*req.Label)
		if err != nil {
			return validationFrom(err)
		}
		record("label", v.Label, label)
		v.Label = label
	}

	if req.Destinations != nil {
		dests := *req.Destinations
		if len(dests) == 0 {
			dests = vault.DefaultDestinations(v.Owner)
		}
		if err := vault.ValidateDestinations(dests, v.TargetDenom, s.cfg.StakingDenom); err != nil {
			return validationFrom(err)
		}
		record("destinations", encodeValue(v.Destinations), encodeValue(dests))
		v.Destinations = dests
	}

	if req.SlippageTolerance != nil {
		if err := vault.ValidateSlippageTolerance(*req.SlippageTolerance); err != nil {
			return validationFrom(err)
		}
		record("slippage_tolerance", v.SlippageTolerance.String(), req.SlippageTolerance.String())
		v.SlippageTolerance = *req.SlippageTolerance
	}

	if req.MinimumReceiveAmount != nil {
		record("minimum_receive_amount", optionalInt(v.MinimumReceiveAmount), req.MinimumReceiveAmount.String())
		minimum := *req.MinimumReceiveAmount
		v.MinimumReceiveAmount = &minimum
	}

	if req.Interval != nil {
		if err := req.Interval.Validate(); err != nil {
			return validationFrom(err)
		}
		record("time_interval", v.Interval.String(), req.Interval.String())
		v.Interval = *req.Interval

		if err := rescheduleForInterval(s, v, record); err != nil {
			return err
		}
	}

	if req.SwapAdjustment != nil {
		if v.SwapAdjustment == nil {
			return NewValidationError("cannot update swap adjustment strategy from none to %s", encodeValue(req.SwapAdjustment))
		}
		if err := vault.ValidateSwapAdjustment(req.SwapAdjustment); err != nil {
			return validationFrom(err)
		}
		record("swap_adjustment_strategy", encodeValue(v.SwapAdjustment), encodeValue(req.SwapAdjustment))
		adj := *req.SwapAdjustment
		v.SwapAdjustment = &adj
	}

	if len(updates) == 0 {
		return nil
	}
	if err := s.tx.UpdateVault(s.ctx, v); err != nil {
		return err
	}
	return s.emit(v.ID, event.Updated{Updates: updates})
}

// rescheduleForInterval moves an existing time trigger to the first slot
// of the new interval at or after now, aligned to when the vault started.
func rescheduleForInterval(s *session, v *vault.Vault, record func(field, oldValue, newValue string)) error {
	existing, err := loadTrigger(s, v.ID)
	if err != nil || existing == nil {
		return err
	}
	old, ok := existing.Config.(trigger.Time)
	if !ok {
		return nil
	}

	basis := s.now
	if v.StartedAt != nil {
		basis = *v.StartedAt
	}
	next, err := v.Interval.NextAtOrAfter(basis, s.now)
	if err != nil {
		return validationFrom(err)
	}
	if err := s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: v.ID, Config: trigger.Time{TargetTime: next}}); err != nil {
		return err
	}
	record("trigger", old.TargetTime.Format(time.RFC3339), next.Format(time.RFC3339))
	return nil
}

func optionalInt(i *math.Int) string {
	if i == nil {
		return ""
	}
	return i.String()
}

func encodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
