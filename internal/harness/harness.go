package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/dispatch"
	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/keeper"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/testutil"
	"github.com/PrismoFinance/bounties/internal/venue"
)

// Harness is the test execution engine.
// It runs scenarios against a real engine, dispatcher and keeper with a
// fake clock, fixed request ids and the paper venue.
type Harness struct {
	store      *store.Store
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	keeper     *keeper.Keeper
	paper      *venue.Paper
	clock      *testutil.FakeClock
	queue      *tickQueue
	logger     *slog.Logger
}

// tickQueue collects what one keeper tick enqueues so the harness can
// submit it synchronously.
type tickQueue struct {
	pending []engine.Request
}

func (q *tickQueue) Enqueue(req engine.Request) bool {
	q.pending = append(q.pending, req)
	return true
}

func (q *tickQueue) take() []engine.Request {
	out := q.pending
	q.pending = nil
	return out
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and bootstrap the ledger config
// 2. Seed the paper venue
// 3. Execute steps, checking each request's outcome
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(ctx, st, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, &scenario.Steps[i], result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Engine: h.engine,
		Venue:  h.paper,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, st *store.Store, scenario *Scenario) (*Harness, error) {
	start, err := scenario.startTime()
	if err != nil {
		return nil, err
	}
	clock := testutil.NewFakeClock(start)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	paper, err := newPaper(scenario)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, st, paper,
		engine.WithNow(clock.Now),
		engine.WithLogger(logger),
		engine.WithRequestIDs(testutil.NewFixedRequestIDs(scenario.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	cfg, err := scenario.Ledger.VaultConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}
	if _, err := eng.Bootstrap(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to bootstrap ledger: %w", err)
	}

	queue := &tickQueue{}
	d := dispatch.New(eng, dispatch.PaperVenue(paper), dispatch.WithLogger(logger))
	k := keeper.New(keeper.Config{Executor: scenario.executor()}, eng, paper, queue,
		keeper.WithLogger(logger),
		keeper.WithClock(clock.Now),
	)

	return &Harness{
		store:      st,
		engine:     eng,
		dispatcher: d,
		keeper:     k,
		paper:      paper,
		clock:      clock,
		queue:      queue,
		logger:     logger,
	}, nil
}

func newPaper(scenario *Scenario) (*venue.Paper, error) {
	p := venue.NewPaper()
	pairs, err := scenario.Venue.PricePairs()
	if err != nil {
		return nil, fmt.Errorf("invalid venue: %w", err)
	}
	for _, pp := range pairs {
		p.SetPrice(pp.Base, pp.Quote, pp.Price)
	}
	spread, err := scenario.Venue.SpreadDec()
	if err != nil {
		return nil, fmt.Errorf("invalid venue: %w", err)
	}
	p.SetSpread(spread)
	return p, nil
}

// executeStep runs one step. Request outcomes that differ from the step's
// expectation are recorded on result; the returned error is reserved for
// steps the harness cannot run at all.
func (h *Harness) executeStep(ctx context.Context, n int, st *Step, result *Result) error {
	switch {
	case st.Advance != "":
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		return nil

	case st.SetPrice != nil:
		base, quote, err := parsePair(st.SetPrice)
		if err != nil {
			return err
		}
		h.paper.SetPrice(base, quote, math.LegacyMustNewDecFromStr(st.SetPrice.Price))
		return nil

	case st.FailNext != "":
		h.paper.FailNext(venue.Op(st.FailNext), fmt.Errorf("injected %s failure", st.FailNext))
		return nil

	case st.Tick:
		if _, err := h.keeper.Tick(ctx); err != nil {
			return fmt.Errorf("keeper tick: %w", err)
		}
		for _, req := range h.queue.take() {
			result.AddTrace(h.submit(ctx, n, req))
		}
		return nil
	}

	req, err := buildRequest(st)
	if err != nil {
		return err
	}
	ev := h.submit(ctx, n, req)
	result.AddTrace(ev)

	for _, msg := range checkExpect(ev, st.Expect) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", n, ev.Request, msg))
	}
	return nil
}

// submit runs req through the dispatcher and records what happened.
func (h *Harness) submit(ctx context.Context, n int, req engine.Request) TraceEvent {
	sender, vaultID := describe(req)
	trace, err := h.dispatcher.Submit(ctx, req)

	ev := TraceEvent{
		Step:       n,
		Request:    req.RequestName(),
		Sender:     sender,
		VaultID:    vaultID,
		Outcome:    OutcomeOK,
		Attributes: trace.Attributes,
		Calls:      trace.Calls,
	}
	if err != nil {
		ev.Outcome = string(engine.CodeOf(err))
		ev.Error = engine.MessageOf(err)
		return ev
	}
	if id, ok := trace.Attributes["vault_id"]; ok && ev.VaultID == 0 {
		ev.VaultID, _ = strconv.ParseUint(id, 10, 64)
	}
	return ev
}

// checkExpect compares ev with expect, where a nil expect means the
// request must be accepted.
func checkExpect(ev TraceEvent, expect *Expect) []string {
	if expect == nil {
		if !ev.OK() {
			return []string{fmt.Sprintf("expected ok, got %s: %s", ev.Outcome, ev.Error)}
		}
		return nil
	}

	var errs []string
	if ev.Outcome != expect.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", expect.Outcome, ev.Outcome)
		if ev.Error != "" {
			msg += ": " + ev.Error
		}
		errs = append(errs, msg)
	}
	if expect.Error != "" && !strings.Contains(ev.Error, expect.Error) {
		errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", expect.Error, ev.Error))
	}
	for _, k := range sortedKeys(expect.Attributes) {
		want := expect.Attributes[k]
		got, ok := ev.Attributes[k]
		if !ok {
			errs = append(errs, fmt.Sprintf("attribute %s: missing, expected %q", k, want))
		} else if got != want {
			errs = append(errs, fmt.Sprintf("attribute %s: expected %q, got %q", k, want, got))
		}
	}
	return errs
}

// describe extracts the sender and vault id every request carries.
func describe(req engine.Request) (string, uint64) {
	switch r := req.(type) {
	case engine.CreateVault:
		return r.Sender, 0
	case engine.Deposit:
		return r.Sender, r.VaultID
	case engine.UpdateVault:
		return r.Sender, r.VaultID
	case engine.CancelVault:
		return r.Sender, r.VaultID
	case engine.ExecuteTrigger:
		return r.Sender, r.VaultID
	case engine.DisburseEscrow:
		return r.Sender, r.VaultID
	case engine.UpdateConfig:
		return r.Sender, 0
	default:
		return "", 0
	}
}
