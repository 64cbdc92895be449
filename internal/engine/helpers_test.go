package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/testutil"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

const (
	testAdmin  = "admin"
	testKeeper = "keeper"
	testOwner  = "owner"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakePrices is a scripted venue read side.
type fakePrices struct {
	mu       sync.Mutex
	quote    math.LegacyDec
	quoteErr error
	twap     math.LegacyDec
	twapErr  error
	filled   map[string]bool
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		quote:  math.LegacyOneDec(),
		twap:   math.LegacyOneDec(),
		filled: make(map[string]bool),
	}
}

func (p *fakePrices) Quote(_ context.Context, _, _ string, _ []string) (math.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quote, p.quoteErr
}

func (p *fakePrices) TWAP(_ context.Context, _, _ string, _ time.Duration, _ []string) (math.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.twap, p.twapErr
}

func (p *fakePrices) OrderFilled(_ context.Context, orderIdx string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled[orderIdx], nil
}

func (p *fakePrices) failQuotes(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quoteErr = err
}

func (p *fakePrices) setTWAP(price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.twap = math.LegacyMustNewDecFromStr(price)
}

func (p *fakePrices) fill(orderIdx string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled[orderIdx] = true
}

// recordingObserver collects committed events.
type recordingObserver struct {
	mu     sync.Mutex
	events []event.Event
}

func (o *recordingObserver) Observe(_ context.Context, events []event.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
}

type testEngine struct {
	*Engine
	t      *testing.T
	store  *store.Store
	clock  *testutil.FakeClock
	prices *fakePrices
}

func testConfig() vault.Config {
	cfg := vault.DefaultConfig(testAdmin)
	cfg.Executors = []string{testKeeper}
	cfg.AutomationFeePercent = math.LegacyMustNewDecFromStr("0.01")
	cfg.EscrowLevel = math.LegacyMustNewDecFromStr("0.05")
	return cfg
}

func setupTestEngine(t *testing.T, opts ...Option) *testEngine {
	return setupTestEngineWithConfig(t, testConfig(), opts...)
}

func setupTestEngineWithConfig(t *testing.T, cfg vault.Config, opts ...Option) *testEngine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewFakeClock(testEpoch)
	prices := newFakePrices()
	all := append([]Option{
		WithNow(clock.Now),
		WithRequestIDs(testutil.NewFixedRequestIDs("req")),
	}, opts...)

	e, err := New(context.Background(), s, prices, all...)
	require.NoError(t, err)
	_, err = e.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	return &testEngine{Engine: e, t: t, store: s, clock: clock, prices: prices}
}

// standardVault is a funded daily vault selling 100 uosmo per execution.
func standardVault(funds int64) CreateVault {
	req := CreateVault{
		Sender:      testOwner,
		TargetDenom: "uusdc",
		SwapAmount:  math.NewInt(100),
		Interval:    trigger.Interval{Kind: trigger.Daily},
	}
	if funds > 0 {
		req.Funds = []coin.Coin{coin.NewInt64("uosmo", funds)}
	} else {
		req.SourceDenom = "uosmo"
	}
	return req
}

func (te *testEngine) handle(req Request) Response {
	te.t.Helper()
	resp, err := te.Handle(context.Background(), req)
	require.NoError(te.t, err)
	return resp
}

func (te *testEngine) resume(reply Reply) Response {
	te.t.Helper()
	resp, err := te.Resume(context.Background(), reply)
	require.NoError(te.t, err)
	return resp
}

func (te *testEngine) create(req CreateVault) uint64 {
	te.t.Helper()
	te.handle(req)
	vaults, err := te.ListVaults(context.Background(), VaultFilter{}, Page{Reverse: true})
	require.NoError(te.t, err)
	require.NotEmpty(te.t, vaults)
	return vaults[0].ID
}

// execute fires the vault's trigger and settles the swap with received.
func (te *testEngine) execute(id uint64, received int64) Response {
	te.t.Helper()
	te.handle(ExecuteTrigger{Sender: testKeeper, VaultID: id})
	return te.resume(Reply{
		ID:      ReplyAfterSwap,
		VaultID: id,
		Result:  ValueResult(coin.NewInt64("uusdc", received), ""),
	})
}

func (te *testEngine) vault(id uint64) *vault.Vault {
	te.t.Helper()
	v, err := te.GetVault(context.Background(), id)
	require.NoError(te.t, err)
	return v
}

// trigger returns the vault's trigger, or nil.
func (te *testEngine) trigger(id uint64) *trigger.Trigger {
	te.t.Helper()
	tr, err := te.GetTrigger(context.Background(), id)
	if IsNotFound(err) {
		return nil
	}
	require.NoError(te.t, err)
	return tr
}

func (te *testEngine) targetTime(id uint64) time.Time {
	te.t.Helper()
	tr := te.trigger(id)
	require.NotNil(te.t, tr, "vault %d has no trigger", id)
	tt, ok := tr.Config.(trigger.Time)
	require.True(te.t, ok, "vault %d trigger is %T", id, tr.Config)
	return tt.TargetTime
}

func (te *testEngine) events(id uint64) []event.Event {
	te.t.Helper()
	events, err := te.ListEvents(context.Background(), &id, Page{})
	require.NoError(te.t, err)
	return events
}

func (te *testEngine) kinds(id uint64) []event.Kind {
	te.t.Helper()
	var out []event.Kind
	for _, ev := range te.events(id) {
		out = append(out, ev.Data.Kind())
	}
	return out
}

// continuation returns the vault's continuation entry, or nil.
func (te *testEngine) continuation(id uint64) *Continuation {
	te.t.Helper()
	var c *Continuation
	err := te.store.View(context.Background(), func(tx *store.Tx) error {
		data, err := tx.GetContinuation(context.Background(), id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		c = &Continuation{}
		return json.Unmarshal(data, c)
	})
	require.NoError(te.t, err)
	return c
}

// sends collects the send calls in resp as "to:amount".
func sends(resp Response) []string {
	var out []string
	for _, c := range resp.Calls {
		if m, ok := c.Msg.(SendMsg); ok {
			out = append(out, m.To+":"+m.Amount.String())
		}
	}
	return out
}

func decPtr(s string) *math.LegacyDec {
	d := math.LegacyMustNewDecFromStr(s)
	return &d
}

func intPtr(i int64) *math.Int {
	v := math.NewInt(i)
	return &v
}
