package vault

import (
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/trigger"
)

// Vault is a recurring swap position.
//
// Balance, DepositedAmount and SwappedAmount are in the source denom.
// ReceivedAmount and EscrowedAmount are in TargetDenom.
type Vault struct {
	ID        uint64     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Owner     string     `json:"owner"`
	Label     string     `json:"label,omitempty"`
	Status    Status     `json:"status"`

	Destinations []Destination `json:"destinations"`

	Balance     coin.Coin `json:"balance"`
	TargetDenom string    `json:"target_denom"`
	Route       []string  `json:"route,omitempty"`

	SlippageTolerance    math.LegacyDec   `json:"slippage_tolerance"`
	MinimumReceiveAmount *math.Int        `json:"minimum_receive_amount,omitempty"`
	SwapAmount           math.Int         `json:"swap_amount"`
	Interval             trigger.Interval `json:"time_interval"`
	EscrowLevel          math.LegacyDec   `json:"escrow_level"`

	DepositedAmount coin.Coin `json:"deposited_amount"`
	SwappedAmount   coin.Coin `json:"swapped_amount"`
	ReceivedAmount  coin.Coin `json:"received_amount"`
	EscrowedAmount  coin.Coin `json:"escrowed_amount"`

	PerformanceAssessment *Baseline       `json:"performance_assessment,omitempty"`
	SwapAdjustment        *SwapAdjustment `json:"swap_adjustment,omitempty"`
}

// SourceDenom is the denom the vault sells.
func (v *Vault) SourceDenom() string {
	return v.Balance.Denom
}

// IsCancelled reports whether the vault reached its terminal status.
func (v *Vault) IsCancelled() bool {
	return v.Status == StatusCancelled
}

// HasLowFunds reports whether the balance no longer covers one swap.
func (v *Vault) HasLowFunds() bool {
	return v.Balance.Amount.LT(v.SwapAmount)
}

// NextSwapAmount is the amount a standard execution would sell now: the
// swap amount, or the remaining balance when it is smaller.
func (v *Vault) NextSwapAmount() math.Int {
	return coin.MinInt(v.SwapAmount, v.Balance.Amount)
}

// ShouldContinue reports whether the vault still needs its trigger. An
// inactive vault keeps firing while its baseline has notional left to
// simulate.
func (v *Vault) ShouldContinue() bool {
	switch v.Status {
	case StatusActive, StatusScheduled:
		return true
	case StatusInactive:
		return v.PerformanceAssessment != nil && v.BaselineRemaining().IsPositive()
	default:
		return false
	}
}

// BaselineRemaining is the deposited notional the baseline has not yet
// swapped. Zero when there is no baseline.
func (v *Vault) BaselineRemaining() math.Int {
	if v.PerformanceAssessment == nil {
		return math.ZeroInt()
	}
	return coin.SubFloor(v.DepositedAmount.Amount, v.PerformanceAssessment.SwappedAmount.Amount)
}

// PriceThresholdExceeded reports whether selling swapAmount at price
// would return less than the minimum receive amount.
func (v *Vault) PriceThresholdExceeded(swapAmount math.Int, price math.LegacyDec) bool {
	if v.MinimumReceiveAmount == nil || price.IsNil() || !price.IsPositive() {
		return false
	}
	return swapAmount.ToLegacyDec().Quo(price).LT(v.MinimumReceiveAmount.ToLegacyDec())
}

// Baseline tracks a standard, unadjusted execution of the same deposits.
// Its totals are advanced by simulation on every fire. SwappedAmount
// bounds how long the vault keeps firing; ReceivedAmount is reported for
// audit and takes no part in the performance fee, which prices the
// vault's own swapped total at the disbursement price.
type Baseline struct {
	SwappedAmount  coin.Coin `json:"swapped_amount"`
	ReceivedAmount coin.Coin `json:"received_amount"`
}

// SwapAdjustment scales each swap by how far the price has moved from the
// price implied by BaseReceiveAmount.
type SwapAdjustment struct {
	BaseReceiveAmount math.Int       `json:"base_receive_amount"`
	Multiplier        math.LegacyDec `json:"multiplier"`
	IncreaseOnly      bool           `json:"increase_only"`
}

// ParseSwapAdjustment parses "base_receive_amount:multiplier[:increase-only]".
func ParseSwapAdjustment(s string) (*SwapAdjustment, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("swap adjustment %q: want base_receive_amount:multiplier[:increase-only]", s)
	}
	base, ok := math.NewIntFromString(parts[0])
	if !ok {
		return nil, fmt.Errorf("swap adjustment %q: invalid base receive amount", s)
	}
	mult, err := math.LegacyNewDecFromStr(parts[1])
	if err != nil {
		return nil, fmt.Errorf("swap adjustment %q: multiplier: %w", s, err)
	}
	adj := &SwapAdjustment{BaseReceiveAmount: base, Multiplier: mult}
	if len(parts) == 3 {
		if parts[2] != "increase-only" {
			return nil, fmt.Errorf("swap adjustment %q: unknown option %q", s, parts[2])
		}
		adj.IncreaseOnly = true
	}
	return adj, nil
}

// Adjust returns the swap amount to sell at price. Prices are quoted as
// source units per target unit, so a higher price means a worse rate and
// a smaller swap.
func (a SwapAdjustment) Adjust(swapAmount math.Int, price math.LegacyDec) math.Int {
	if a.BaseReceiveAmount.IsNil() || a.BaseReceiveAmount.IsZero() || !price.IsPositive() {
		return swapAmount
	}
	basePrice := coin.Ratio(swapAmount, a.BaseReceiveAmount)
	delta := price.Sub(basePrice).Quo(basePrice)
	scale := math.LegacyOneDec().Sub(delta.Mul(a.Multiplier))
	if scale.IsNegative() {
		scale = math.LegacyZeroDec()
	}
	if a.IncreaseOnly && scale.LT(math.LegacyOneDec()) {
		scale = math.LegacyOneDec()
	}
	return coin.MulDec(swapAmount, scale)
}
