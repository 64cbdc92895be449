// Package dispatch performs the external calls the engine returns and
// feeds each wanted result back through engine.Resume.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/metrics"
	"github.com/PrismoFinance/bounties/internal/venue"
)

// Handler is the engine surface the dispatcher drives.
type Handler interface {
	Handle(ctx context.Context, req engine.Request) (engine.Response, error)
	Resume(ctx context.Context, reply engine.Reply) (engine.Response, error)
}

// Venue bundles the collaborators calls are executed against.
type Venue struct {
	Exchange  venue.Exchange
	Bank      venue.Bank
	Staking   venue.Staking
	Contracts venue.Contracts
}

// PaperVenue routes every call to p.
func PaperVenue(p *venue.Paper) Venue {
	return Venue{Exchange: p, Bank: p, Staking: p, Contracts: p}
}

// CallRecord is one executed call and what came of it.
type CallRecord struct {
	VaultID uint64         `json:"vault_id"`
	Kind    engine.MsgKind `json:"kind"`
	Msg     engine.Msg     `json:"msg"`
	Result  engine.Result  `json:"result"`
	ReplyID engine.ReplyID `json:"reply_id,omitempty"`
	Resumed bool           `json:"resumed"`
}

// Trace is everything one request caused: its own attributes and those of
// every resume it triggered, and the calls performed in order.
type Trace struct {
	Request    string            `json:"request"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Calls      []CallRecord      `json:"calls,omitempty"`
}

// Dispatcher serializes requests into the engine and drains their calls.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine; requests are processed one at a time
//   - Enqueue(): safe from any goroutine
//   - Run(): call from exactly ONE goroutine
//
// A call whose result the engine wants is resumed immediately and the
// calls that resume returns are drained before the next sibling call, so
// each continuation sees the results it asked for in order.
type Dispatcher struct {
	handler Handler
	venue   Venue
	logger  *slog.Logger
	metrics metrics.Sink
	queue   *requestQueue

	// writer serializes Submit and Run so the engine has a single writer.
	writer sync.Mutex
}

// Option allows configuration of dispatcher parameters.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: metrics.NoopSink.
func WithMetrics(m metrics.Sink) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher.
func New(h Handler, v Venue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handler: h,
		venue:   v,
		logger:  slog.Default(),
		metrics: metrics.NewNoopSink(),
		queue:   newRequestQueue(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit handles req and drains every call it causes before returning.
// The error is the engine's *engine.Error for a rejected request; call
// failures are reported in the Trace, not as errors.
func (d *Dispatcher) Submit(ctx context.Context, req engine.Request) (Trace, error) {
	d.writer.Lock()
	defer d.writer.Unlock()

	trace := Trace{Request: req.RequestName()}
	resp, err := d.handler.Handle(ctx, req)
	if err != nil {
		return trace, err
	}
	trace.merge(resp.Attributes)
	d.drain(ctx, resp.Calls, &trace)
	return trace, nil
}

// Enqueue submits req for processing by the Run loop.
// Returns false if the dispatcher has been stopped.
func (d *Dispatcher) Enqueue(req engine.Request) bool {
	ok := d.queue.Enqueue(req)
	d.metrics.QueueDepthUpdate(d.queue.Len())
	return ok
}

// Run processes queued requests until ctx is cancelled or Stop is called.
//
// A rejected request is logged by the engine and processing continues;
// the keeper will offer due work again on its next tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher starting")

	for {
		req, ok := d.queue.TryDequeue()
		if ok {
			d.metrics.QueueDepthUpdate(d.queue.Len())
			// Rejections are logged by the engine at the level their code warrants
			_, _ = d.Submit(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping: context cancelled")
			d.queue.Close()
			return ctx.Err()

		case <-d.queue.Wait():
			// The signal channel closes with the queue
			if d.queue.Len() == 0 {
				d.logger.Info("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue, which makes Run return once it is empty.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// drain executes calls in order, resuming the engine depth-first.
func (d *Dispatcher) drain(ctx context.Context, calls []engine.Call, trace *Trace) {
	for _, call := range calls {
		result := d.execute(ctx, call)
		record := CallRecord{
			VaultID: call.VaultID,
			Kind:    call.Msg.Kind(),
			Msg:     call.Msg,
			Result:  result,
		}

		if !call.Wants(result.OK()) {
			if !result.OK() {
				d.logger.Warn("call failed",
					"vault_id", call.VaultID,
					"kind", call.Msg.Kind(),
					"error", result.Error,
				)
			}
			trace.Calls = append(trace.Calls, record)
			continue
		}

		record.ReplyID = call.ReplyID
		record.Resumed = true
		trace.Calls = append(trace.Calls, record)

		resp, err := d.handler.Resume(ctx, engine.Reply{
			ID:      call.ReplyID,
			VaultID: call.VaultID,
			Result:  result,
		})
		if err != nil {
			// The continuation entry stays behind; the vault rejects new
			// executions until an operator resolves it.
			d.logger.Error("resume failed",
				"vault_id", call.VaultID,
				"reply_id", call.ReplyID,
				"error", err,
			)
			continue
		}
		trace.merge(resp.Attributes)
		d.drain(ctx, resp.Calls, trace)
	}
}

// execute performs one call and reports its result.
func (d *Dispatcher) execute(ctx context.Context, call engine.Call) engine.Result {
	started := time.Now()
	received, orderIdx, err := d.perform(ctx, call.Msg)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	d.metrics.CallExecuted(string(call.Msg.Kind()), outcome, time.Since(started))

	if err != nil {
		return engine.ErrorResult(err.Error())
	}
	return engine.ValueResult(received, orderIdx)
}

func (d *Dispatcher) perform(ctx context.Context, msg engine.Msg) (coin.Coin, string, error) {
	switch m := msg.(type) {
	case engine.SendMsg:
		return coin.Coin{}, "", d.venue.Bank.Send(ctx, m.To, m.Amount)

	case engine.SwapMsg:
		received, err := d.venue.Exchange.Swap(ctx, venue.SwapRequest{
			Offer:             m.Offer,
			TargetDenom:       m.TargetDenom,
			Route:             m.Route,
			SlippageTolerance: m.SlippageTolerance,
			MinimumReceive:    m.MinimumReceive,
		})
		return received, "", err

	case engine.DelegateMsg:
		return coin.Coin{}, "", d.venue.Staking.Delegate(ctx, m.Delegator, m.Validator, m.Amount)

	case engine.InvokeMsg:
		return coin.Coin{}, "", d.venue.Contracts.Invoke(ctx, m.Contract, m.Msg, m.Funds)

	case engine.PlaceLimitOrderMsg:
		idx, err := d.venue.Exchange.PlaceLimitOrder(ctx, m.Offer, m.TargetDenom, m.TargetPrice)
		return coin.Coin{}, idx, err

	case engine.RetractOrderMsg:
		return coin.Coin{}, "", d.venue.Exchange.RetractOrder(ctx, m.OrderIdx)

	case engine.WithdrawOrderMsg:
		received, err := d.venue.Exchange.WithdrawOrder(ctx, m.OrderIdx)
		return received, "", err

	default:
		return coin.Coin{}, "", fmt.Errorf("unsupported message %T", msg)
	}
}

func (t *Trace) merge(attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	if t.Attributes == nil {
		t.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		t.Attributes[k] = v
	}
}
