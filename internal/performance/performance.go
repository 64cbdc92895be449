// Package performance judges incremental execution against a single-shot
// counterfactual and prices the escrow release accordingly.
//
// Prices are quoted as source units per target unit. The counterfactual
// for a vault is its total swapped input sold in one go at the sampled
// price; outperformance is what the vault actually received above that.
package performance

import (
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// Counterfactual is what the vault would have received selling its whole
// swapped amount at price.
func Counterfactual(v *vault.Vault, price math.LegacyDec) math.Int {
	return coin.QuoDec(v.SwappedAmount.Amount, price)
}

// Factor is actual received over counterfactual received. A vault that
// has not swapped anything has a factor of one.
func Factor(v *vault.Vault, price math.LegacyDec) math.LegacyDec {
	cf := Counterfactual(v, price)
	if cf.IsZero() {
		return math.LegacyOneDec()
	}
	return coin.Ratio(v.ReceivedAmount.Amount, cf)
}

// Fee is feePercent of the outperformance, capped at the escrowed amount.
// Zero when the vault did not outperform.
func Fee(v *vault.Vault, price, feePercent math.LegacyDec) coin.Coin {
	out := coin.SubFloor(v.ReceivedAmount.Amount, Counterfactual(v, price))
	if out.IsZero() {
		return coin.Zero(v.TargetDenom)
	}
	fee := coin.MinInt(coin.MulDec(out, feePercent), v.EscrowedAmount.Amount)
	return coin.New(v.TargetDenom, fee)
}

// ExpectedCompletionDate projects when the vault would finish executing
// from now. The remaining notional is the balance, or the baseline's
// remaining notional when that is larger.
func ExpectedCompletionDate(v *vault.Vault, now time.Time) (time.Time, error) {
	if v.SwapAmount.IsNil() || v.SwapAmount.IsZero() {
		return time.Time{}, fmt.Errorf("vault %d has no swap amount", v.ID)
	}
	remaining := v.Balance.Amount
	if v.PerformanceAssessment != nil {
		if r := v.BaselineRemaining(); r.GT(remaining) {
			remaining = r
		}
	}
	executions := remaining.Quo(v.SwapAmount)
	if !executions.IsInt64() {
		return time.Time{}, fmt.Errorf("vault %d has too many remaining executions", v.ID)
	}
	return v.Interval.Advance(now, executions.Int64())
}

// Simulation is one standard execution applied to the baseline.
type Simulation struct {
	Sent     coin.Coin
	Received coin.Coin
	Fee      coin.Coin
}

// SimulateStandard sells the unadjusted swap amount from the baseline at
// price, net of feePercent, and advances the baseline totals. Returns
// false when the vault has no baseline or nothing left to simulate.
func SimulateStandard(v *vault.Vault, price, feePercent math.LegacyDec) (Simulation, bool) {
	b := v.PerformanceAssessment
	if b == nil {
		return Simulation{}, false
	}
	remaining := v.BaselineRemaining()
	if remaining.IsZero() || !price.IsPositive() {
		return Simulation{}, false
	}
	sent := coin.MinInt(v.SwapAmount, remaining)
	gross := coin.QuoDec(sent, price)
	fee := coin.MulDec(gross, feePercent)
	received := gross.Sub(fee)

	b.SwappedAmount = coin.New(v.SourceDenom(), b.SwappedAmount.Amount).Add(sent)
	b.ReceivedAmount = coin.New(v.TargetDenom, b.ReceivedAmount.Amount).Add(received)

	return Simulation{
		Sent:     coin.New(v.SourceDenom(), sent),
		Received: coin.New(v.TargetDenom, received),
		Fee:      coin.New(v.TargetDenom, fee),
	}, true
}
