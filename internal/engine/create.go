package engine

import (
	"strconv"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

const vaultSequence = "vaults"

func (e *Engine) createVault(s *session, req CreateVault, resp *Response) error {
	if s.cfg.Paused {
		return NewValidationError("contract is paused")
	}
	if len(req.Funds) > 1 {
		return NewValidationError("received %d denoms but required exactly 1", len(req.Funds))
	}

	sourceDenom := req.SourceDenom
	deposit := coin.Zero(sourceDenom)
	if len(req.Funds) == 1 {
		deposit = req.Funds[0]
		if sourceDenom == "" {
			sourceDenom = deposit.Denom
		}
		if deposit.Denom != sourceDenom {
			return NewValidationError("received asset with denom %s, but needed %s", deposit.Denom, sourceDenom)
		}
	}
	if sourceDenom == "" {
		return NewValidationError("received 0 denoms but required exactly 1")
	}

	if err := vault.ValidateSwapAmount(req.SwapAmount); err != nil {
		return validationFrom(err)
	}
	if sourceDenom == req.TargetDenom {
		return NewValidationError("swap denom and target denom cannot be the same")
	}

	owner := req.Owner
	if owner == "" {
		owner = req.Sender
	}
	label, err := vault.NormalizeLabel(req.Label)
	if err != nil {
		return validationFrom(err)
	}

	destinations := req.Destinations
	if len(destinations) == 0 {
		destinations = vault.DefaultDestinations(owner)
	}
	if err := vault.ValidateDestinations(destinations, req.TargetDenom, s.cfg.StakingDenom); err != nil {
		return validationFrom(err)
	}

	slippage := s.cfg.DefaultSlippageTolerance
	if req.SlippageTolerance != nil {
		slippage = *req.SlippageTolerance
	}
	if err := vault.ValidateSlippageTolerance(slippage); err != nil {
		return validationFrom(err)
	}
	if err := req.Interval.Validate(); err != nil {
		return validationFrom(err)
	}
	if req.TargetStartTime != nil && !req.TargetStartTime.After(s.now) {
		return NewValidationError("target_start_time_utc_seconds must be some time in the future")
	}
	if req.TargetStartTime != nil && req.TargetReceiveAmount != nil {
		return NewValidationError("cannot provide both a target_start_time_utc_seconds and a target_price")
	}
	if req.TargetReceiveAmount != nil && !req.TargetReceiveAmount.IsPositive() {
		return NewValidationError("target receive amount must be greater than 0")
	}
	if err := vault.ValidateSwapAdjustment(req.SwapAdjustment); err != nil {
		return validationFrom(err)
	}

	id, err := s.tx.NextSequence(s.ctx, vaultSequence)
	if err != nil {
		return err
	}

	status := vault.StatusActive
	switch {
	case !deposit.IsPositive():
		status = vault.StatusInactive
	case req.TargetStartTime != nil:
		status = vault.StatusScheduled
	}

	escrowLevel := math.LegacyZeroDec()
	var baseline *vault.Baseline
	if req.PerformanceAssessment {
		escrowLevel = s.cfg.EscrowLevel
		baseline = &vault.Baseline{
			SwappedAmount:  coin.Zero(sourceDenom),
			ReceivedAmount: coin.Zero(req.TargetDenom),
		}
	}

	v := &vault.Vault{
		ID:                    id,
		CreatedAt:             s.now,
		Owner:                 owner,
		Label:                 label,
		Status:                status,
		Destinations:          destinations,
		Balance:               coin.New(sourceDenom, deposit.Amount),
		TargetDenom:           req.TargetDenom,
		Route:                 req.Route,
		SlippageTolerance:     slippage,
		MinimumReceiveAmount:  req.MinimumReceiveAmount,
		SwapAmount:            req.SwapAmount,
		Interval:              req.Interval,
		EscrowLevel:           escrowLevel,
		DepositedAmount:       coin.New(sourceDenom, deposit.Amount),
		SwappedAmount:         coin.Zero(sourceDenom),
		ReceivedAmount:        coin.Zero(req.TargetDenom),
		EscrowedAmount:        coin.Zero(req.TargetDenom),
		PerformanceAssessment: baseline,
		SwapAdjustment:        req.SwapAdjustment,
	}
	if err := s.tx.InsertVault(s.ctx, v); err != nil {
		return err
	}

	if deposit.IsPositive() {
		if err := s.emit(id, event.FundsDeposited{Amount: v.Balance}); err != nil {
			return err
		}
	}

	switch {
	case status == vault.StatusScheduled:
		err = s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: id, Config: trigger.Time{TargetTime: req.TargetStartTime.UTC()}})
	case status == vault.StatusActive && req.TargetReceiveAmount != nil:
		err = placeLimitOrder(s, v, *req.TargetReceiveAmount, resp)
	case status == vault.StatusActive:
		err = s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: id, Config: trigger.Time{TargetTime: s.now}})
	}
	if err != nil {
		return err
	}

	s.logger.Info("vault created", "vault_id", id, "owner", owner, "status", status.String())
	resp.attr("vault_id", strconv.FormatUint(id, 10))
	resp.attr("status", status.String())
	return nil
}
