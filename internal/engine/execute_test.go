package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

func TestExecuteTrigger_SwapAndSettle(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))

	resp := te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
	require.Len(t, resp.Calls, 1)
	call := resp.Calls[0]
	swap, ok := call.Msg.(SwapMsg)
	require.True(t, ok, "got %T", call.Msg)
	assert.Equal(t, "100uosmo", swap.Offer.String())
	assert.Equal(t, "uusdc", swap.TargetDenom)
	assert.Equal(t, ReplyAlways, call.ReplyOn)
	assert.Equal(t, ReplyAfterSwap, call.ReplyID)
	assert.Nil(t, te.trigger(id), "trigger is consumed while the swap is outstanding")

	cont := te.continuation(id)
	require.NotNil(t, cont)
	assert.Equal(t, "100", cont.SwapAmount.String())
	assert.Equal(t, "req-2", cont.RequestID)

	resp = te.resume(Reply{ID: ReplyAfterSwap, VaultID: id, Result: ValueResult(coin.NewInt64("uusdc", 100), "")})
	assert.Equal(t, []string{"owner:99uusdc", "admin:1uusdc"}, sends(resp))

	v := te.vault(id)
	assert.Equal(t, "900uosmo", v.Balance.String())
	assert.Equal(t, "100uosmo", v.SwappedAmount.String())
	assert.Equal(t, "100uusdc", v.ReceivedAmount.String())
	assert.Equal(t, vault.StatusActive, v.Status)
	require.NotNil(t, v.StartedAt)
	assert.True(t, testEpoch.Equal(*v.StartedAt))

	assert.Nil(t, te.continuation(id))
	assert.True(t, testEpoch.Add(24*time.Hour).Equal(te.targetTime(id)))

	assert.Equal(t, []event.Kind{
		event.KindFundsDeposited,
		event.KindExecutionTriggered,
		event.KindExecutionCompleted,
	}, te.kinds(id))

	events := te.events(id)
	completed := events[2].Data.(event.ExecutionCompleted)
	assert.Equal(t, "100uosmo", completed.Sent.String())
	assert.Equal(t, "100uusdc", completed.Received.String())
	assert.Equal(t, "1uusdc", completed.Fee.String())
}

func TestExecuteTrigger_ScheduledBecomesActive(t *testing.T) {
	te := setupTestEngine(t)
	start := testEpoch.Add(time.Hour)
	req := standardVault(1000)
	req.TargetStartTime = &start
	id := te.create(req)

	_, err := te.Handle(context.Background(), ExecuteTrigger{Sender: testKeeper, VaultID: id})
	require.Error(t, err)
	assert.Equal(t, "trigger execution time has not yet elapsed", MessageOf(err))

	te.clock.Set(start)
	te.execute(id, 100)

	v := te.vault(id)
	assert.Equal(t, vault.StatusActive, v.Status)
	assert.True(t, start.Add(24*time.Hour).Equal(te.targetTime(id)))
}

func TestExecuteTrigger_Preconditions(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))
	te.execute(id, 100)

	_, err := te.Handle(context.Background(), ExecuteTrigger{Sender: testKeeper, VaultID: id})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, "trigger execution time has not yet elapsed", MessageOf(err))

	_, err = te.Handle(context.Background(), ExecuteTrigger{Sender: testKeeper, VaultID: 42})
	assert.True(t, IsNotFound(err))

	inactive := te.create(standardVault(0))
	_, err = te.Handle(context.Background(), ExecuteTrigger{Sender: testKeeper, VaultID: inactive})
	require.Error(t, err)
	assert.Equal(t, "no trigger found for vault 2", MessageOf(err))
}

func TestExecuteTrigger_IsPermissionless(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))

	resp := te.handle(ExecuteTrigger{Sender: "anyone", VaultID: id})
	assert.Len(t, resp.Calls, 1)
}

func TestExecuteTrigger_SkipReschedulesFromPreviousTarget(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))

	te.clock.Advance(5 * time.Minute)
	te.prices.failQuotes(errors.New("pool not found"))
	resp := te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
	assert.Empty(t, resp.Calls)

	events := te.events(id)
	skipped, ok := events[len(events)-1].Data.(event.ExecutionSkipped)
	require.True(t, ok)
	assert.Equal(t, event.SkipSlippageQueryError, skipped.Reason.Kind)
	assert.Equal(t, "pool not found", skipped.Reason.Message)

	assert.True(t, testEpoch.Add(24*time.Hour).Equal(te.targetTime(id)))
	assert.Equal(t, "1000uosmo", te.vault(id).Balance.String())
	assert.Nil(t, te.continuation(id))
}

func TestExecuteTrigger_SwapFailureClassification(t *testing.T) {
	tests := []struct {
		venueError string
		wantKind   event.SkipKind
	}{
		{"Max spread assertion", event.SkipSlippageToleranceExceeded},
		{"slippage exceeded", event.SkipSlippageToleranceExceeded},
		{"insufficient funds: 10uosmo < 100uosmo", event.SkipInsufficientFunds},
		{"pool is frozen", event.SkipUnknownFailure},
	}

	for _, tt := range tests {
		t.Run(tt.venueError, func(t *testing.T) {
			te := setupTestEngine(t)
			id := te.create(standardVault(1000))

			te.clock.Advance(time.Hour)
			te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
			resp := te.resume(Reply{ID: ReplyAfterSwap, VaultID: id, Result: ErrorResult(tt.venueError)})
			assert.Empty(t, resp.Calls)

			events := te.events(id)
			skipped, ok := events[len(events)-1].Data.(event.ExecutionSkipped)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, skipped.Reason.Kind)

			v := te.vault(id)
			assert.Equal(t, "1000uosmo", v.Balance.String())
			assert.True(t, v.SwappedAmount.IsZero())
			assert.Nil(t, te.continuation(id))
			assert.True(t, testEpoch.Add(24*time.Hour).Equal(te.targetTime(id)))
		})
	}
}

func TestExecuteTrigger_MissedPeriodsCatchUp(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))

	te.clock.Advance(72 * time.Hour)
	te.execute(id, 100)
	assert.True(t, testEpoch.Add(24*time.Hour).Equal(te.targetTime(id)))

	// The next period is already due
	te.execute(id, 100)
	assert.True(t, testEpoch.Add(48*time.Hour).Equal(te.targetTime(id)))
	assert.Equal(t, "800uosmo", te.vault(id).Balance.String())
}

func TestExecuteTrigger_PriceThresholdExceeded(t *testing.T) {
	te := setupTestEngine(t)
	req := standardVault(1000)
	req.MinimumReceiveAmount = intPtr(150)
	id := te.create(req)

	resp := te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
	assert.Empty(t, resp.Calls)

	events := te.events(id)
	skipped, ok := events[len(events)-1].Data.(event.ExecutionSkipped)
	require.True(t, ok)
	assert.Equal(t, event.SkipPriceThresholdExceeded, skipped.Reason.Kind)
	require.NotNil(t, skipped.Reason.Price)
	assert.True(t, skipped.Reason.Price.Equal(math.LegacyOneDec()))
	assert.True(t, testEpoch.Add(24*time.Hour).Equal(te.targetTime(id)))
}

func TestExecuteTrigger_SwapAdjustment(t *testing.T) {
	te := setupTestEngine(t)
	req := standardVault(1000)
	req.SwapAdjustment = &vault.SwapAdjustment{
		BaseReceiveAmount: math.NewInt(100),
		Multiplier:        math.LegacyMustNewDecFromStr("2"),
	}
	id := te.create(req)

	// 20% cheaper than the base price: sell 40% more
	te.prices.quote = math.LegacyMustNewDecFromStr("0.8")
	resp := te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
	require.Len(t, resp.Calls, 1)
	assert.Equal(t, "140uosmo", resp.Calls[0].Msg.(SwapMsg).Offer.String())
	te.resume(Reply{ID: ReplyAfterSwap, VaultID: id, Result: ValueResult(coin.NewInt64("uusdc", 175), "")})
	assert.Equal(t, "860uosmo", te.vault(id).Balance.String())

	// 60% dearer: the adjustment scales the swap to nothing
	te.clock.Set(testEpoch.Add(24 * time.Hour))
	te.prices.quote = math.LegacyMustNewDecFromStr("1.6")
	resp = te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
	assert.Empty(t, resp.Calls)

	events := te.events(id)
	skipped, ok := events[len(events)-1].Data.(event.ExecutionSkipped)
	require.True(t, ok)
	assert.Equal(t, event.SkipSwapAmountAdjustedToZero, skipped.Reason.Kind)
}

func TestAfterSwap_LowFundsDeactivates(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(150))

	te.execute(id, 100)

	v := te.vault(id)
	assert.Equal(t, vault.StatusInactive, v.Status)
	assert.Equal(t, "50uosmo", v.Balance.String())
	assert.Nil(t, te.trigger(id), "an inactive vault without a baseline stops firing")
}

func TestAfterSwap_WithoutContinuationIsFatal(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))

	_, err := te.Resume(context.Background(), Reply{ID: ReplyAfterSwap, VaultID: id, Result: ValueResult(coin.NewInt64("uusdc", 1), "")})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, "1000uosmo", te.vault(id).Balance.String())
}

func TestResume_FailSilentlyIsNoop(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))
	before := te.kinds(id)

	resp := te.resume(Reply{ID: ReplyFailSilently, VaultID: id, Result: ErrorResult("order not found")})
	assert.Empty(t, resp.Calls)
	assert.Equal(t, before, te.kinds(id))
}

func TestPostExecutionAction_DelegationFailure(t *testing.T) {
	cfg := testConfig()
	cfg.StakingDenom = "uusdc"
	te := setupTestEngineWithConfig(t, cfg)

	req := standardVault(1000)
	req.Destinations = []vault.Destination{
		{Address: testOwner, Allocation: math.LegacyMustNewDecFromStr("0.5"), Action: vault.Transfer{}},
		{Address: "alice", Allocation: math.LegacyMustNewDecFromStr("0.25"), Action: vault.Delegate{Validator: "val1"}},
		{Address: "bob", Allocation: math.LegacyMustNewDecFromStr("0.25"), Action: vault.Delegate{Validator: "val2"}},
	}
	id := te.create(req)

	resp := te.execute(id, 200)
	require.Len(t, resp.Calls, 4)
	assert.Equal(t, []string{"owner:99uusdc", "admin:2uusdc"}, sends(resp))
	delegate, ok := resp.Calls[1].Msg.(DelegateMsg)
	require.True(t, ok)
	assert.Equal(t, "alice", delegate.Delegator)
	assert.Equal(t, "val1", delegate.Validator)
	assert.Equal(t, "49uusdc", delegate.Amount.String())
	assert.Equal(t, ReplyAfterPostExecutionAction, resp.Calls[1].ReplyID)

	cont := te.continuation(id)
	require.NotNil(t, cont)
	require.Len(t, cont.Pending, 2)
	assert.Equal(t, 1, cont.Pending[0].DestinationIndex)
	assert.Equal(t, 2, cont.Pending[1].DestinationIndex)

	// A follow-up is outstanding, so the next period waits
	te.clock.Set(testEpoch.Add(24 * time.Hour))
	_, err := te.Handle(context.Background(), ExecuteTrigger{Sender: testKeeper, VaultID: id})
	require.Error(t, err)
	assert.Equal(t, "vault 1 has an execution in progress", MessageOf(err))

	resp = te.resume(Reply{ID: ReplyAfterPostExecutionAction, VaultID: id, Result: ErrorResult("validator jailed")})
	assert.Equal(t, []string{"owner:49uusdc"}, sends(resp))
	assert.Equal(t, "failed", resp.Attributes["destination_msg_1"])

	events := te.events(id)
	failed, ok := events[len(events)-1].Data.(event.PostExecutionActionFailed)
	require.True(t, ok)
	require.Len(t, failed.Funds, 1)
	assert.Equal(t, "49uusdc", failed.Funds[0].String())
	assert.Contains(t, failed.Msg, "val1")

	cont = te.continuation(id)
	require.NotNil(t, cont)
	require.Len(t, cont.Pending, 1)
	assert.Equal(t, 2, cont.Pending[0].DestinationIndex)

	resp = te.resume(Reply{ID: ReplyAfterPostExecutionAction, VaultID: id, Result: ValueResult(coin.Coin{}, "")})
	assert.Empty(t, resp.Calls)
	assert.Equal(t, "succeeded", resp.Attributes["destination_msg_2"])
	assert.Nil(t, te.continuation(id))

	te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
}

func TestLimitOrder_PlaceFillAndSettle(t *testing.T) {
	te := setupTestEngine(t)
	req := standardVault(1000)
	req.TargetReceiveAmount = intPtr(50)

	resp := te.handle(req)
	require.Len(t, resp.Calls, 1)
	place, ok := resp.Calls[0].Msg.(PlaceLimitOrderMsg)
	require.True(t, ok)
	assert.Equal(t, "100uosmo", place.Offer.String())
	assert.True(t, place.TargetPrice.Equal(math.LegacyMustNewDecFromStr("2")))
	assert.Equal(t, ReplyAfterLimitOrderPlaced, resp.Calls[0].ReplyID)
	assert.Nil(t, te.trigger(1))

	te.resume(Reply{ID: ReplyAfterLimitOrderPlaced, VaultID: 1, Result: ValueResult(coin.Coin{}, "order-7")})
	tr := te.trigger(1)
	require.NotNil(t, tr)
	price, ok := tr.Config.(trigger.Price)
	require.True(t, ok)
	assert.Equal(t, "order-7", price.OrderIdx)
	assert.Nil(t, te.continuation(1))

	_, err := te.Handle(context.Background(), ExecuteTrigger{Sender: testKeeper, VaultID: 1})
	require.Error(t, err)
	assert.Equal(t, "target price has not been met", MessageOf(err))

	te.prices.fill("order-7")
	te.clock.Advance(time.Hour)
	resp = te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: 1})
	require.Len(t, resp.Calls, 1)
	assert.Equal(t, WithdrawOrderMsg{OrderIdx: "order-7"}, resp.Calls[0].Msg)

	te.resume(Reply{ID: ReplyAfterSwap, VaultID: 1, Result: ValueResult(coin.NewInt64("uusdc", 50), "")})
	v := te.vault(1)
	assert.Equal(t, "900uosmo", v.Balance.String())
	assert.Equal(t, "50uusdc", v.ReceivedAmount.String())
	assert.True(t, testEpoch.Add(25*time.Hour).Equal(te.targetTime(1)))
}

func TestLimitOrder_PlacementFailureFallsBackToTime(t *testing.T) {
	te := setupTestEngine(t)
	req := standardVault(1000)
	req.TargetReceiveAmount = intPtr(50)
	te.handle(req)

	te.resume(Reply{ID: ReplyAfterLimitOrderPlaced, VaultID: 1, Result: ErrorResult("insufficient funds")})

	assert.True(t, testEpoch.Equal(te.targetTime(1)))
	events := te.events(1)
	skipped, ok := events[len(events)-1].Data.(event.ExecutionSkipped)
	require.True(t, ok)
	assert.Equal(t, event.SkipInsufficientFunds, skipped.Reason.Kind)
}

func TestLimitOrder_CancelAbandonsOrder(t *testing.T) {
	te := setupTestEngine(t)
	req := standardVault(1000)
	req.TargetReceiveAmount = intPtr(50)
	te.handle(req)
	te.resume(Reply{ID: ReplyAfterLimitOrderPlaced, VaultID: 1, Result: ValueResult(coin.Coin{}, "order-7")})

	resp := te.handle(CancelVault{Sender: testOwner, VaultID: 1})
	require.Len(t, resp.Calls, 3)
	assert.Equal(t, []string{"owner:1000uosmo"}, sends(resp))
	assert.Equal(t, RetractOrderMsg{OrderIdx: "order-7"}, resp.Calls[1].Msg)
	assert.Equal(t, WithdrawOrderMsg{OrderIdx: "order-7"}, resp.Calls[2].Msg)
	for _, c := range resp.Calls[1:] {
		assert.Equal(t, ReplyOnError, c.ReplyOn)
		assert.Equal(t, ReplyFailSilently, c.ReplyID)
	}
	assert.Nil(t, te.trigger(1))
}

func TestCancelDuringSwap(t *testing.T) {
	tests := []struct {
		name       string
		result     Result
		wantSends  []string
		wantSwap   string
		wantEvents []event.Kind
	}{
		{
			name:      "fill settles the held amount",
			result:    ValueResult(coin.NewInt64("uusdc", 100), ""),
			wantSends: []string{"owner:99uusdc", "admin:1uusdc"},
			wantSwap:  "100uosmo",
			wantEvents: []event.Kind{
				event.KindFundsDeposited,
				event.KindExecutionTriggered,
				event.KindCancelled,
				event.KindExecutionCompleted,
			},
		},
		{
			name:      "failure returns the held amount",
			result:    ErrorResult("insufficient funds"),
			wantSends: []string{"owner:100uosmo"},
			wantSwap:  "0uosmo",
			wantEvents: []event.Kind{
				event.KindFundsDeposited,
				event.KindExecutionTriggered,
				event.KindCancelled,
				event.KindExecutionSkipped,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := setupTestEngine(t)
			id := te.create(standardVault(1000))

			resp := te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
			offered := resp.Calls[0].Msg.(SwapMsg).Offer
			assert.Equal(t, "100uosmo", offered.String())

			resp = te.handle(CancelVault{Sender: testOwner, VaultID: id})
			assert.Equal(t, []string{"owner:900uosmo"}, sends(resp))
			assert.Equal(t, "900uosmo", resp.Attributes["refunded_amount"])
			assert.Equal(t, "100uosmo", resp.Attributes["reserved_amount"])
			assert.Equal(t, "100uosmo", te.vault(id).Balance.String())

			events := te.events(id)
			cancelled := events[len(events)-1].Data.(event.Cancelled)
			require.NotNil(t, cancelled.Reserved)
			assert.Equal(t, "100uosmo", cancelled.Reserved.String())

			resp = te.resume(Reply{ID: ReplyAfterSwap, VaultID: id, Result: tt.result})
			assert.Equal(t, tt.wantSends, sends(resp))

			v := te.vault(id)
			assert.Equal(t, vault.StatusCancelled, v.Status)
			assert.True(t, v.Balance.IsZero())
			assert.Equal(t, tt.wantSwap, v.SwappedAmount.String())
			assert.Nil(t, te.trigger(id))
			assert.Nil(t, te.continuation(id))
			assert.Equal(t, tt.wantEvents, te.kinds(id))

			// Source funds leaving the vault never exceed the deposit.
			out := math.NewInt(900).Add(v.SwappedAmount.Amount)
			for _, s := range sends(resp) {
				if s == "owner:100uosmo" {
					out = out.AddRaw(100)
				}
			}
			assert.True(t, out.Equal(v.DepositedAmount.Amount), "outflow %s, deposited %s", out, v.DepositedAmount)
		})
	}
}

func TestCancelAfterSettlementRefundsWholeBalance(t *testing.T) {
	te := setupTestEngine(t)
	id := te.create(standardVault(1000))
	te.execute(id, 100)

	resp := te.handle(CancelVault{Sender: testOwner, VaultID: id})
	assert.Equal(t, []string{"owner:900uosmo"}, sends(resp))
	assert.NotContains(t, resp.Attributes, "reserved_amount")
	assert.True(t, te.vault(id).Balance.IsZero())
}
