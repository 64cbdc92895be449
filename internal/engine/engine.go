package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/metrics"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// Prices is the read side of the venue the engine consults while handling
// a request. Prices are quoted in source units per target unit.
type Prices interface {
	Quote(ctx context.Context, base, quote string, route []string) (math.LegacyDec, error)
	TWAP(ctx context.Context, base, quote string, period time.Duration, route []string) (math.LegacyDec, error)
	OrderFilled(ctx context.Context, orderIdx string) (bool, error)
}

// Observer is notified of the events a request appended, after the
// request's transaction commits. Observers must not block.
type Observer interface {
	Observe(ctx context.Context, events []event.Event)
}

// Engine handles inbound requests and continuation resumes against the
// ledger store.
//
// Every request and every resume runs in one store transaction: either all
// of its vault, trigger, event and continuation writes commit together or
// none do. Handlers never perform external calls; they return them in a
// Response, and the dispatcher feeds each call's result back via Resume.
//
// Thread-safety model:
//   - Handle() and Resume(): called from the dispatcher's single writer
//   - query methods: safe from any goroutine (read-only transactions)
type Engine struct {
	store     *store.Store
	prices    Prices
	clock     *Clock
	now       func() time.Time
	ids       RequestIDGenerator
	logger    *slog.Logger
	metrics   metrics.Sink
	observers []Observer
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithNow sets the wall clock used for trigger due checks and event
// timestamps. Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: metrics.NoopSink.
func WithMetrics(m metrics.Sink) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithObserver registers an observer for committed events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithRequestIDs sets the request id generator. Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine over s. The height clock resumes after the highest
// height already recorded in the event log.
func New(ctx context.Context, s *store.Store, prices Prices, opts ...Option) (*Engine, error) {
	var height int64
	err := s.View(ctx, func(tx *store.Tx) error {
		var err error
		height, err = tx.MaxHeight(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resume height: %w", err)
	}

	e := &Engine{
		store:   s,
		prices:  prices,
		clock:   NewClockAt(height),
		now:     time.Now,
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		metrics: metrics.NewNoopSink(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Bootstrap stores cfg as the ledger config if none exists yet. Returns
// true when cfg was written.
func (e *Engine) Bootstrap(ctx context.Context, cfg vault.Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, validationFrom(err)
	}
	written := false
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.GetConfig(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		written = true
		return tx.SaveConfig(ctx, cfg)
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap config: %w", err)
	}
	return written, nil
}

// Height returns the last height issued to a request.
func (e *Engine) Height() int64 {
	return e.clock.Current()
}

// session carries the state of one request or resume while its
// transaction is open.
type session struct {
	ctx       context.Context
	tx        *store.Tx
	cfg       vault.Config
	now       time.Time
	height    int64
	requestID string
	logger    *slog.Logger
	events    []event.Event
}

// emit appends an event for vaultID at the session's height.
func (s *session) emit(vaultID uint64, data event.Data) error {
	ev, err := s.tx.AppendEvent(s.ctx, event.Event{
		ResourceID: vaultID,
		Timestamp:  s.now,
		Height:     s.height,
		Data:       data,
	})
	if err != nil {
		return err
	}
	s.events = append(s.events, ev)
	return nil
}

// Handle runs one inbound request to completion.
//
// On success the returned Response lists the external calls to perform, in
// order. On failure nothing was written and the error is an *Error.
func (e *Engine) Handle(ctx context.Context, req Request) (Response, error) {
	return e.run(ctx, req.RequestName(), 0, func(s *session, resp *Response) error {
		switch r := req.(type) {
		case CreateVault:
			return e.createVault(s, r, resp)
		case Deposit:
			return e.deposit(s, r, resp)
		case UpdateVault:
			return e.updateVault(s, r, resp)
		case CancelVault:
			return e.cancelVault(s, r, resp)
		case ExecuteTrigger:
			return e.executeTrigger(s, r, resp)
		case DisburseEscrow:
			return e.disburseEscrow(s, r, resp)
		case UpdateConfig:
			return e.updateConfig(s, r, resp)
		default:
			return NewValidationError("unsupported request %T", req)
		}
	})
}

// Resume delivers a call's result to the continuation named by reply.ID.
func (e *Engine) Resume(ctx context.Context, reply Reply) (Response, error) {
	name := "resume_" + string(reply.ID)
	resp, err := e.run(ctx, name, reply.VaultID, func(s *session, resp *Response) error {
		switch reply.ID {
		case ReplyAfterSwap:
			return e.afterSwap(s, reply, resp)
		case ReplyAfterPostExecutionAction:
			return e.afterPostExecutionAction(s, reply, resp)
		case ReplyAfterLimitOrderPlaced:
			return e.afterLimitOrderPlaced(s, reply, resp)
		case ReplyFailSilently:
			s.logger.Debug("ignoring call result", "error", reply.Result.Error)
			return nil
		default:
			return NewValidationError("unknown reply id %q", reply.ID)
		}
	})
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = outcomeOf(err)
	}
	e.metrics.ResumeHandled(string(reply.ID), outcome)
	return resp, err
}

// run opens the request's transaction, loads the ledger config and invokes
// fn. Events are published to observers only after commit.
func (e *Engine) run(ctx context.Context, name string, vaultID uint64, fn func(*session, *Response) error) (Response, error) {
	started := time.Now()
	requestID := e.ids.Generate()
	logger := e.logger.With("request", name, "request_id", requestID)
	if vaultID != 0 {
		logger = logger.With("vault_id", vaultID)
	}

	var (
		resp Response
		s    *session
	)
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		cfg, err := tx.GetConfig(ctx)
		if err != nil {
			return NewFatalError(0, fmt.Errorf("load ledger config: %w", err))
		}
		s = &session{
			ctx:       ctx,
			tx:        tx,
			cfg:       cfg,
			now:       e.now().UTC(),
			height:    e.clock.Next(),
			requestID: requestID,
			logger:    logger,
		}
		return fn(s, &resp)
	})

	duration := time.Since(started)
	if err != nil {
		err = asEngineError(err)
		e.logFailure(logger, err)
		e.metrics.RequestHandled(name, outcomeOf(err), duration)
		return Response{}, err
	}

	for _, ev := range s.events {
		e.metrics.EventAppended(string(ev.Data.Kind()))
		switch d := ev.Data.(type) {
		case event.ExecutionSkipped:
			e.metrics.ExecutionSkipped(string(d.Reason.Kind))
		case event.EscrowDisbursed:
			e.metrics.EscrowDisbursed(metrics.OutcomeSuccess)
		}
	}
	e.metrics.RequestHandled(name, metrics.OutcomeSuccess, duration)
	logger.Debug("request committed",
		"height", s.height,
		"events", len(s.events),
		"calls", len(resp.Calls),
	)

	if len(s.events) > 0 {
		for _, o := range e.observers {
			o.Observe(ctx, s.events)
		}
	}
	return resp, nil
}

// logFailure applies the logging policy: precondition failures are
// expected control flow, validation failures are the caller's problem,
// anything else is an operator problem.
func (e *Engine) logFailure(logger *slog.Logger, err error) {
	switch CodeOf(err) {
	case ErrCodePrecondition, ErrCodeNotFound:
		logger.Debug("request rejected", "error", err)
	case ErrCodeValidation, ErrCodeUnauthorized:
		logger.Info("request rejected", "error", err)
	default:
		logger.Error("request failed", "error", err)
	}
}

// asEngineError maps infrastructure errors to FATAL and store misses to
// NOT_FOUND, leaving engine errors untouched.
func asEngineError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Code: ErrCodeNotFound, Message: err.Error(), Err: err}
	}
	return NewFatalError(0, err)
}

func outcomeOf(err error) string {
	switch CodeOf(err) {
	case ErrCodeValidation:
		return metrics.OutcomeValidation
	case ErrCodePrecondition:
		return metrics.OutcomePrecondition
	case ErrCodeUnauthorized:
		return metrics.OutcomeUnauthorized
	case ErrCodeNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFatal
	}
}
