package venue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/coin"
)

func dec(s string) math.LegacyDec {
	return math.LegacyMustNewDecFromStr(s)
}

func TestPaper_QuoteInvertsReversePair(t *testing.T) {
	p := NewPaper()
	p.SetPrice("uosmo", "uusdc", dec("2"))
	ctx := context.Background()

	price, err := p.Quote(ctx, "uosmo", "uusdc", nil)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("2")))

	inverse, err := p.Quote(ctx, "uusdc", "uosmo", nil)
	require.NoError(t, err)
	assert.True(t, inverse.Equal(dec("0.5")))

	_, err = p.Quote(ctx, "uatom", "uusdc", nil)
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPaper_Swap(t *testing.T) {
	p := NewPaper()
	p.SetPrice("uosmo", "uusdc", dec("2"))
	p.SetSpread(dec("0.01"))

	got, err := p.Swap(context.Background(), SwapRequest{
		Offer:             coin.NewInt64("uosmo", 1000),
		TargetDenom:       "uusdc",
		SlippageTolerance: dec("0.02"),
	})
	require.NoError(t, err)
	assert.Equal(t, "495uusdc", got.String())
}

func TestPaper_SwapFailures(t *testing.T) {
	tests := []struct {
		name    string
		spread  string
		minimum int64
		wantErr string
	}{
		{name: "spread above tolerance", spread: "0.05", wantErr: "max spread assertion"},
		{name: "below minimum receive", spread: "0.01", minimum: 496, wantErr: "less than minimum receive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaper()
			p.SetPrice("uosmo", "uusdc", dec("2"))
			p.SetSpread(dec(tt.spread))

			req := SwapRequest{
				Offer:             coin.NewInt64("uosmo", 1000),
				TargetDenom:       "uusdc",
				SlippageTolerance: dec("0.02"),
			}
			if tt.minimum > 0 {
				m := math.NewInt(tt.minimum)
				req.MinimumReceive = &m
			}
			_, err := p.Swap(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPaper_InjectedFailures(t *testing.T) {
	p := NewPaper()
	ctx := context.Background()
	boom := errors.New("boom")

	p.FailNext(OpSend, boom)
	assert.ErrorIs(t, p.Send(ctx, "a", coin.NewInt64("uusdc", 1)), boom)
	require.NoError(t, p.Send(ctx, "a", coin.NewInt64("uusdc", 1)))

	p.FailAlways(OpDelegate, boom)
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, p.Delegate(ctx, "a", "val", coin.NewInt64("uosmo", 1)), boom)
	}
	p.Clear()
	require.NoError(t, p.Delegate(ctx, "a", "val", coin.NewInt64("uosmo", 1)))

	assert.Len(t, p.Transfers(), 1)
	assert.Len(t, p.Delegations(), 1)
}

func TestPaper_LimitOrderLifecycle(t *testing.T) {
	p := NewPaper()
	p.SetPrice("uosmo", "uusdc", dec("3"))
	ctx := context.Background()

	idx, err := p.PlaceLimitOrder(ctx, coin.NewInt64("uosmo", 100), "uusdc", dec("2"))
	require.NoError(t, err)
	assert.Equal(t, "1", idx)

	filled, err := p.OrderFilled(ctx, idx)
	require.NoError(t, err)
	assert.False(t, filled)

	_, err = p.WithdrawOrder(ctx, idx)
	assert.Error(t, err)

	p.SetPrice("uosmo", "uusdc", dec("1.9"))
	filled, err = p.OrderFilled(ctx, idx)
	require.NoError(t, err)
	assert.True(t, filled)

	assert.Error(t, p.RetractOrder(ctx, idx), "filled orders cannot be retracted")

	got, err := p.WithdrawOrder(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, "50uusdc", got.String())

	_, err = p.WithdrawOrder(ctx, idx)
	assert.Error(t, err, "an order is withdrawn once")
}

func TestPaper_RetractOrder(t *testing.T) {
	p := NewPaper()
	ctx := context.Background()

	idx, err := p.PlaceLimitOrder(ctx, coin.NewInt64("uosmo", 100), "uusdc", dec("2"))
	require.NoError(t, err)
	require.NoError(t, p.RetractOrder(ctx, idx))

	p.SetPrice("uosmo", "uusdc", dec("1"))
	filled, err := p.OrderFilled(ctx, idx)
	require.NoError(t, err)
	assert.False(t, filled, "retracted orders never fill")
}

func TestPaper_Invoke(t *testing.T) {
	p := NewPaper()
	msg := json.RawMessage(`{"deposit":{}}`)
	require.NoError(t, p.Invoke(context.Background(), "contract", msg, []coin.Coin{coin.NewInt64("uusdc", 5)}))

	calls := p.Invocations()
	require.Len(t, calls, 1)
	assert.Equal(t, "contract", calls[0].Contract)
	assert.JSONEq(t, `{"deposit":{}}`, string(calls[0].Msg))
	assert.Equal(t, "5uusdc", calls[0].Funds[0].String())
}
