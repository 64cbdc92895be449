// Package venue defines the external collaborators the dispatcher calls:
// the exchange, the bank, staking and contract execution.
//
// Paper implements all of them in memory for the serve command's dry-run
// mode and for tests.
package venue

import (
	"context"
	"encoding/json"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
)

// Exchange quotes prices, swaps and manages limit orders. Prices are
// quoted in base units per quote unit.
type Exchange interface {
	Quote(ctx context.Context, base, quote string, route []string) (math.LegacyDec, error)
	TWAP(ctx context.Context, base, quote string, period time.Duration, route []string) (math.LegacyDec, error)
	Swap(ctx context.Context, req SwapRequest) (coin.Coin, error)
	PlaceLimitOrder(ctx context.Context, offer coin.Coin, targetDenom string, price math.LegacyDec) (string, error)
	OrderFilled(ctx context.Context, orderIdx string) (bool, error)
	RetractOrder(ctx context.Context, orderIdx string) error
	WithdrawOrder(ctx context.Context, orderIdx string) (coin.Coin, error)
}

// SwapRequest sells Offer for TargetDenom. The swap fails when the
// venue's spread exceeds SlippageTolerance or the proceeds fall short of
// MinimumReceive.
type SwapRequest struct {
	Offer             coin.Coin
	TargetDenom       string
	Route             []string
	SlippageTolerance math.LegacyDec
	MinimumReceive    *math.Int
}

// Bank moves funds out of the ledger account.
type Bank interface {
	Send(ctx context.Context, to string, amount coin.Coin) error
}

// Staking delegates funds to a validator on behalf of a delegator.
type Staking interface {
	Delegate(ctx context.Context, delegator, validator string, amount coin.Coin) error
}

// Contracts executes a message on a contract with funds attached.
type Contracts interface {
	Invoke(ctx context.Context, contract string, msg json.RawMessage, funds []coin.Coin) error
}
