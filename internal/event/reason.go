package event

import (
	"strings"

	"cosmossdk.io/math"
)

// SkipKind names why an execution did not settle.
type SkipKind string

const (
	SkipSlippageToleranceExceeded SkipKind = "slippage_tolerance_exceeded"
	SkipPriceThresholdExceeded    SkipKind = "price_threshold_exceeded"
	SkipSwapAmountAdjustedToZero  SkipKind = "swap_amount_adjusted_to_zero"
	SkipSlippageQueryError        SkipKind = "slippage_query_error"
	SkipInsufficientFunds         SkipKind = "insufficient_funds"
	SkipUnknownFailure            SkipKind = "unknown_failure"
)

// SkipReason is the classified cause of a skipped execution. Price is set
// for price threshold skips; Message carries venue text for unknown
// failures and query errors.
type SkipReason struct {
	Kind    SkipKind        `json:"kind"`
	Price   *math.LegacyDec `json:"price,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ClassifySwapFailure maps venue error text to a skip reason.
func ClassifySwapFailure(msg string) SkipReason {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "slippage"),
		strings.Contains(lower, "max spread"),
		strings.Contains(lower, "less than minimum receive"):
		return SkipReason{Kind: SkipSlippageToleranceExceeded}
	case strings.Contains(lower, "insufficient funds"):
		return SkipReason{Kind: SkipInsufficientFunds}
	default:
		return SkipReason{Kind: SkipUnknownFailure, Message: msg}
	}
}

// PriceThresholdExceeded builds the reason for a minimum-receive skip.
func PriceThresholdExceeded(price math.LegacyDec) SkipReason {
	return SkipReason{Kind: SkipPriceThresholdExceeded, Price: &price}
}
