package vault

import (
	"fmt"
	"unicode/utf8"

	"cosmossdk.io/math"
	"golang.org/x/text/unicode/norm"
)

// MaxDestinations bounds the fan-out of a single settlement.
const MaxDestinations = 10

// MaxLabelLength bounds the label in characters after normalization.
const MaxLabelLength = 100

// NormalizeLabel returns the NFC form of label, or an error when it is
// too long.
func NormalizeLabel(label string) (string, error) {
	label = norm.NFC.String(label)
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return "", fmt.Errorf("Vault label cannot be longer than %d characters", MaxLabelLength)
	}
	return label, nil
}

// ValidateDestinations enforces the allocation rules. stakingDenom may be
// empty, in which case delegation is not restricted by denom.
func ValidateDestinations(dests []Destination, targetDenom, stakingDenom string) error {
	if len(dests) > MaxDestinations {
		return fmt.Errorf("no more than %d destinations can be provided", MaxDestinations)
	}
	total := math.LegacyZeroDec()
	for _, d := range dests {
		if d.Address == "" {
			return fmt.Errorf("destination address is required")
		}
		if d.Allocation.IsNil() || !d.Allocation.IsPositive() {
			return fmt.Errorf("all destination allocations must be greater than 0")
		}
		if del, ok := d.Action.(Delegate); ok {
			if del.Validator == "" {
				return fmt.Errorf("delegate destinations require a validator")
			}
			if stakingDenom != "" && targetDenom != stakingDenom {
				return fmt.Errorf("cannot delegate to a validator with denom %s, must be %s", targetDenom, stakingDenom)
			}
		}
		total = total.Add(d.Allocation)
	}
	if len(dests) > 0 && !total.Equal(math.LegacyOneDec()) {
		return fmt.Errorf("destination allocations must add up to 1")
	}
	return nil
}

// ValidateSlippageTolerance rejects tolerances outside [0, 1].
func ValidateSlippageTolerance(d math.LegacyDec) error {
	if d.IsNil() || d.IsNegative() || d.GT(math.LegacyOneDec()) {
		return fmt.Errorf("slippage tolerance must be less than or equal to 1")
	}
	return nil
}

// ValidateSwapAmount rejects empty swaps.
func ValidateSwapAmount(a math.Int) error {
	if a.IsNil() || !a.IsPositive() {
		return fmt.Errorf("swap amount must be greater than 0")
	}
	return nil
}

// ValidateSwapAdjustment rejects adjustments that cannot scale anything.
func ValidateSwapAdjustment(a *SwapAdjustment) error {
	if a == nil {
		return nil
	}
	if a.BaseReceiveAmount.IsNil() || !a.BaseReceiveAmount.IsPositive() {
		return fmt.Errorf("swap adjustment base receive amount must be greater than 0")
	}
	if a.Multiplier.IsNil() || a.Multiplier.IsNegative() {
		return fmt.Errorf("swap adjustment multiplier must not be negative")
	}
	return nil
}
