package keeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/store"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type mockLedger struct {
	mu        sync.Mutex
	triggers  []uint64
	tasks     []store.EscrowTask
	orders    []store.PriceOrder
	err       error
	gotNow    time.Time
	gotLimits []uint32
}

func (m *mockLedger) DueTriggerIDs(_ context.Context, now time.Time, limit uint32) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotNow = now
	m.gotLimits = append(m.gotLimits, limit)
	return m.triggers, m.err
}

func (m *mockLedger) DueEscrowTasks(_ context.Context, _ time.Time, limit uint32) ([]store.EscrowTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotLimits = append(m.gotLimits, limit)
	return m.tasks, nil
}

func (m *mockLedger) PendingOrders(_ context.Context, limit uint32) ([]store.PriceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotLimits = append(m.gotLimits, limit)
	return m.orders, nil
}

type mockOrderBook struct {
	filled map[string]bool
	err    error
}

func (m *mockOrderBook) OrderFilled(_ context.Context, orderIdx string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.filled[orderIdx], nil
}

type mockQueue struct {
	mu       sync.Mutex
	requests []engine.Request
	closed   bool
}

func (m *mockQueue) Enqueue(req engine.Request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.requests = append(m.requests, req)
	return true
}

func (m *mockQueue) snapshot() []engine.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.Request(nil), m.requests...)
}

func newTestKeeper(ledger *mockLedger, orders *mockOrderBook, queue *mockQueue) *Keeper {
	return New(
		Config{TickInterval: 10 * time.Millisecond, BatchSize: 50, Executor: "keeper"},
		ledger, orders, queue,
		WithClock(func() time.Time { return testNow }),
	)
}

func TestKeeper_TickEnqueuesDueWork(t *testing.T) {
	ledger := &mockLedger{
		triggers: []uint64{3, 1},
		orders:   []store.PriceOrder{{VaultID: 4, OrderIdx: "7"}, {VaultID: 5, OrderIdx: "8"}},
		tasks:    []store.EscrowTask{{VaultID: 2, DueAt: testNow.Add(-time.Hour)}},
	}
	orders := &mockOrderBook{filled: map[string]bool{"7": true}}
	queue := &mockQueue{}

	n, err := newTestKeeper(ledger, orders, queue).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, []engine.Request{
		engine.ExecuteTrigger{Sender: "keeper", VaultID: 3},
		engine.ExecuteTrigger{Sender: "keeper", VaultID: 1},
		engine.ExecuteTrigger{Sender: "keeper", VaultID: 4},
		engine.DisburseEscrow{Sender: "keeper", VaultID: 2},
	}, queue.snapshot())

	assert.True(t, ledger.gotNow.Equal(testNow))
	assert.Equal(t, []uint32{50, 50, 50}, ledger.gotLimits)
}

func TestKeeper_TickNothingDue(t *testing.T) {
	queue := &mockQueue{}
	n, err := newTestKeeper(&mockLedger{}, &mockOrderBook{}, queue).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, queue.snapshot())
}

func TestKeeper_TickLedgerError(t *testing.T) {
	ledger := &mockLedger{err: errors.New("database is locked")}
	_, err := newTestKeeper(ledger, &mockOrderBook{}, &mockQueue{}).Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get due triggers")
}

func TestKeeper_OrderQueryFailureSkipsOrder(t *testing.T) {
	ledger := &mockLedger{orders: []store.PriceOrder{{VaultID: 4, OrderIdx: "7"}}}
	orders := &mockOrderBook{err: errors.New("venue unavailable")}
	queue := &mockQueue{}

	n, err := newTestKeeper(ledger, orders, queue).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeeper_TickQueueClosed(t *testing.T) {
	ledger := &mockLedger{triggers: []uint64{1}}
	queue := &mockQueue{closed: true}

	_, err := newTestKeeper(ledger, &mockOrderBook{}, queue).Tick(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestKeeper_RunTicksUntilCancelled(t *testing.T) {
	ledger := &mockLedger{triggers: []uint64{1}}
	queue := &mockQueue{}
	k := newTestKeeper(ledger, &mockOrderBook{}, queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- k.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return len(queue.snapshot()) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
