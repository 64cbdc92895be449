package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/testutil"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
	"github.com/PrismoFinance/bounties/internal/venue"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	engine *engine.Engine
	paper  *venue.Paper
	clock  *testutil.FakeClock
	d      *Dispatcher
}

func setupDispatcher(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	paper := venue.NewPaper()
	paper.SetPrice("uosmo", "uusdc", math.LegacyOneDec())
	clock := testutil.NewFakeClock(testEpoch)

	e, err := engine.New(context.Background(), s, paper,
		engine.WithNow(clock.Now),
		engine.WithRequestIDs(testutil.NewFixedRequestIDs("req")),
	)
	require.NoError(t, err)

	cfg := vault.DefaultConfig("admin")
	cfg.Executors = []string{"keeper"}
	cfg.AutomationFeePercent = math.LegacyMustNewDecFromStr("0.01")
	_, err = e.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	return &fixture{engine: e, paper: paper, clock: clock, d: New(e, PaperVenue(paper))}
}

func dailyVault() engine.CreateVault {
	return engine.CreateVault{
		Sender:      "owner",
		TargetDenom: "uusdc",
		SwapAmount:  math.NewInt(100),
		Interval:    trigger.Interval{Kind: trigger.Daily},
		Funds:       []coin.Coin{coin.NewInt64("uosmo", 1000)},
	}
}

func (f *fixture) submit(t *testing.T, req engine.Request) Trace {
	t.Helper()
	trace, err := f.d.Submit(context.Background(), req)
	require.NoError(t, err)
	return trace
}

func (f *fixture) kinds(t *testing.T, id uint64) []event.Kind {
	t.Helper()
	events, err := f.engine.ListEvents(context.Background(), &id, engine.Page{})
	require.NoError(t, err)
	var out []event.Kind
	for _, ev := range events {
		out = append(out, ev.Data.Kind())
	}
	return out
}

func transfers(p *venue.Paper) []string {
	var out []string
	for _, tr := range p.Transfers() {
		out = append(out, tr.To+":"+tr.Amount.String())
	}
	return out
}

func callKinds(trace Trace) []engine.MsgKind {
	var out []engine.MsgKind
	for _, c := range trace.Calls {
		out = append(out, c.Kind)
	}
	return out
}

func TestDispatcher_SubmitSettlesSwap(t *testing.T) {
	f := setupDispatcher(t)

	created := f.submit(t, dailyVault())
	assert.Equal(t, "1", created.Attributes["vault_id"])
	assert.Empty(t, created.Calls)

	trace := f.submit(t, engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})
	assert.Equal(t, "execute_trigger", trace.Request)
	assert.Equal(t, []engine.MsgKind{engine.MsgSwap, engine.MsgSend, engine.MsgSend}, callKinds(trace))
	assert.True(t, trace.Calls[0].Resumed)
	assert.Equal(t, engine.ReplyAfterSwap, trace.Calls[0].ReplyID)
	assert.Equal(t, "100uusdc", trace.Calls[0].Result.Received.String())
	assert.Equal(t, "100uusdc", trace.Attributes["received"])
	assert.Equal(t, "1", trace.Attributes["fee"])

	assert.Equal(t, []string{"owner:99uusdc", "admin:1uusdc"}, transfers(f.paper))

	v, err := f.engine.GetVault(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "900uosmo", v.Balance.String())
	assert.Equal(t, "100uusdc", v.ReceivedAmount.String())
}

func TestDispatcher_SwapFailureSkips(t *testing.T) {
	f := setupDispatcher(t)
	f.submit(t, dailyVault())

	f.paper.FailNext(venue.OpSwap, errors.New("max spread assertion"))
	trace := f.submit(t, engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})

	require.Len(t, trace.Calls, 1)
	assert.False(t, trace.Calls[0].Result.OK())
	assert.Empty(t, f.paper.Transfers())
	assert.Equal(t, []event.Kind{
		event.KindFundsDeposited,
		event.KindExecutionTriggered,
		event.KindExecutionSkipped,
	}, f.kinds(t, 1))

	// The vault is free to execute again at its next slot
	f.clock.Set(testEpoch.Add(24 * time.Hour))
	f.submit(t, engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})
	assert.Len(t, f.paper.Transfers(), 2)
}

func TestDispatcher_FailedDestinationRefundsOwner(t *testing.T) {
	f := setupDispatcher(t)
	req := dailyVault()
	req.Destinations = []vault.Destination{
		{Address: "owner", Allocation: math.LegacyMustNewDecFromStr("0.5"), Action: vault.Transfer{}},
		{Address: "contract", Allocation: math.LegacyMustNewDecFromStr("0.5"), Action: vault.Invoke{Msg: json.RawMessage(`{"deposit":{}}`)}},
	}
	f.submit(t, req)

	f.paper.FailNext(venue.OpInvoke, errors.New("contract rejected"))
	trace := f.submit(t, engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})

	assert.Equal(t, []engine.MsgKind{
		engine.MsgSwap,
		engine.MsgSend,
		engine.MsgInvoke,
		engine.MsgSend,
		engine.MsgSend,
	}, callKinds(trace))
	assert.Equal(t, "failed", trace.Attributes["destination_msg_1"])

	// Net 99 splits 49/49; the refund runs before the fee send
	assert.Equal(t, []string{"owner:49uusdc", "owner:49uusdc", "admin:1uusdc"}, transfers(f.paper))
	assert.Empty(t, f.paper.Invocations())
	assert.Contains(t, f.kinds(t, 1), event.KindPostExecutionActionFailed)

	f.clock.Set(testEpoch.Add(24 * time.Hour))
	trace = f.submit(t, engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})
	assert.Equal(t, "succeeded", trace.Attributes["destination_msg_1"])
	require.Len(t, f.paper.Invocations(), 1)
	assert.Equal(t, "49uusdc", f.paper.Invocations()[0].Funds[0].String())
}

func TestDispatcher_LimitOrder(t *testing.T) {
	f := setupDispatcher(t)
	f.paper.SetPrice("uosmo", "uusdc", math.LegacyNewDec(3))

	req := dailyVault()
	receive := math.NewInt(50)
	req.TargetReceiveAmount = &receive
	created := f.submit(t, req)
	assert.Equal(t, []engine.MsgKind{engine.MsgPlaceLimitOrder}, callKinds(created))
	assert.Equal(t, "1", created.Attributes["order_idx"])

	tr, err := f.engine.GetTrigger(context.Background(), 1)
	require.NoError(t, err)
	price, ok := tr.Config.(trigger.Price)
	require.True(t, ok)
	assert.Equal(t, "1", price.OrderIdx)

	_, err = f.d.Submit(context.Background(), engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})
	require.Error(t, err)
	assert.Equal(t, "target price has not been met", engine.MessageOf(err))

	f.paper.SetPrice("uosmo", "uusdc", math.LegacyMustNewDecFromStr("1.9"))
	trace := f.submit(t, engine.ExecuteTrigger{Sender: "keeper", VaultID: 1})
	assert.Equal(t, engine.MsgWithdrawOrder, trace.Calls[0].Kind)
	assert.Equal(t, []string{"owner:50uusdc"}, transfers(f.paper))

	tr, err = f.engine.GetTrigger(context.Background(), 1)
	require.NoError(t, err)
	_, ok = tr.Config.(trigger.Time)
	assert.True(t, ok, "a filled order is followed by a time trigger")
}

func TestDispatcher_SubmitRejected(t *testing.T) {
	f := setupDispatcher(t)

	trace, err := f.d.Submit(context.Background(), engine.ExecuteTrigger{Sender: "keeper", VaultID: 99})
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
	assert.Empty(t, trace.Calls)
}

func TestDispatcher_Run(t *testing.T) {
	f := setupDispatcher(t)
	f.submit(t, dailyVault())

	done := make(chan error, 1)
	go func() {
		done <- f.d.Run(context.Background())
	}()

	require.True(t, f.d.Enqueue(engine.ExecuteTrigger{Sender: "keeper", VaultID: 1}))
	require.True(t, f.d.Enqueue(engine.ExecuteTrigger{Sender: "keeper", VaultID: 99}))

	assert.Eventually(t, func() bool {
		return len(f.paper.Transfers()) == 2
	}, time.Second, 5*time.Millisecond)

	f.d.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.False(t, f.d.Enqueue(engine.ExecuteTrigger{Sender: "keeper", VaultID: 1}))
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	f := setupDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.d.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
