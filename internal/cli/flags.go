package cli

import (
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
)

func parseCoins(values []string) ([]coin.Coin, error) {
	out := make([]coin.Coin, 0, len(values))
	for _, s := range values {
		c, err := coin.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseDecFlag(name, s string) (*math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

func parseIntFlag(name, s string) (*math.Int, error) {
	i, ok := math.NewIntFromString(s)
	if !ok {
		return nil, fmt.Errorf("--%s: invalid integer %q", name, s)
	}
	return &i, nil
}

func parseTimeFlag(name, s string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

func commandError(err error) error {
	return WrapExitError(ExitCommandError, "invalid arguments", err)
}
