// Package keeper finds due work on a fixed tick and hands it to the
// dispatcher: time triggers past their target, filled limit orders, and
// disburse-escrow tasks past their due date.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/metrics"
	"github.com/PrismoFinance/bounties/internal/store"
)

// Ledger is the read side of the engine the keeper polls.
type Ledger interface {
	DueTriggerIDs(ctx context.Context, now time.Time, limit uint32) ([]uint64, error)
	DueEscrowTasks(ctx context.Context, now time.Time, limit uint32) ([]store.EscrowTask, error)
	PendingOrders(ctx context.Context, limit uint32) ([]store.PriceOrder, error)
}

// OrderBook reports whether a venue order has filled.
type OrderBook interface {
	OrderFilled(ctx context.Context, orderIdx string) (bool, error)
}

// Queue accepts requests for the dispatcher's Run loop.
type Queue interface {
	Enqueue(req engine.Request) bool
}

// ErrQueueClosed is returned by a tick that could not hand off work
// because the dispatcher has stopped.
var ErrQueueClosed = errors.New("dispatcher queue is closed")

type Config struct {
	TickInterval time.Duration
	// BatchSize caps each kind of work per tick. Zero means no cap.
	BatchSize uint32
	// Executor signs the requests the keeper enqueues.
	Executor string
}

type Keeper struct {
	config  Config
	ledger  Ledger
	orders  OrderBook
	queue   Queue
	logger  *slog.Logger
	metrics metrics.Sink
	clock   func() time.Time
}

// Option allows configuration of keeper parameters.
type Option func(*Keeper)

func WithLogger(l *slog.Logger) Option {
	return func(k *Keeper) {
		k.logger = l
	}
}

func WithMetrics(m metrics.Sink) Option {
	return func(k *Keeper) {
		k.metrics = m
	}
}

// WithClock sets the wall clock used for due checks. Default: time.Now.
func WithClock(clock func() time.Time) Option {
	return func(k *Keeper) {
		k.clock = clock
	}
}

func New(config Config, ledger Ledger, orders OrderBook, queue Queue, opts ...Option) *Keeper {
	k := &Keeper{
		config:  config,
		ledger:  ledger,
		orders:  orders,
		queue:   queue,
		logger:  slog.Default(),
		metrics: metrics.NewNoopSink(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.config.TickInterval)
	defer ticker.Stop()

	k.logger.Info("keeper started", "tick", k.config.TickInterval, "executor", k.config.Executor)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := k.Tick(ctx); err != nil {
				k.logger.Error("keeper tick failed", "error", err)
			}
		}
	}
}

// Tick enqueues everything due now and returns how many requests it
// enqueued. A request already queued from an earlier tick may be enqueued
// again; the engine rejects the duplicate with a precondition error.
func (k *Keeper) Tick(ctx context.Context) (int, error) {
	started := time.Now()
	enqueued, err := k.processTick(ctx)
	k.metrics.TickCompleted(time.Since(started), enqueued, err)
	return enqueued, err
}

func (k *Keeper) processTick(ctx context.Context) (int, error) {
	now := k.clock().UTC()
	enqueued := 0

	ids, err := k.ledger.DueTriggerIDs(ctx, now, k.config.BatchSize)
	if err != nil {
		return enqueued, fmt.Errorf("get due triggers: %w", err)
	}
	for _, id := range ids {
		if !k.queue.Enqueue(engine.ExecuteTrigger{Sender: k.config.Executor, VaultID: id}) {
			return enqueued, ErrQueueClosed
		}
		enqueued++
	}

	orders, err := k.ledger.PendingOrders(ctx, k.config.BatchSize)
	if err != nil {
		return enqueued, fmt.Errorf("get pending orders: %w", err)
	}
	for _, o := range orders {
		filled, err := k.orders.OrderFilled(ctx, o.OrderIdx)
		if err != nil {
			k.logger.Warn("order query failed", "vault_id", o.VaultID, "order_idx", o.OrderIdx, "error", err)
			continue
		}
		if !filled {
			continue
		}
		if !k.queue.Enqueue(engine.ExecuteTrigger{Sender: k.config.Executor, VaultID: o.VaultID}) {
			return enqueued, ErrQueueClosed
		}
		enqueued++
	}

	tasks, err := k.ledger.DueEscrowTasks(ctx, now, k.config.BatchSize)
	if err != nil {
		return enqueued, fmt.Errorf("get due escrow tasks: %w", err)
	}
	for _, task := range tasks {
		if !k.queue.Enqueue(engine.DisburseEscrow{Sender: k.config.Executor, VaultID: task.VaultID}) {
			return enqueued, ErrQueueClosed
		}
		enqueued++
	}

	if enqueued > 0 {
		k.logger.Debug("keeper tick", "enqueued", enqueued, "now", now)
	}
	return enqueued, nil
}
