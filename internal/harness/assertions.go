package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/replay"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/vault"
	"github.com/PrismoFinance/bounties/internal/venue"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		buf.WriteString(RenderTrace(e.Trace))
	}
	return buf.String()
}

// vaultFields reads the vault_state fields an assertion may name.
var vaultFields = map[string]func(*vault.Vault) string{
	"status":           func(v *vault.Vault) string { return v.Status.String() },
	"owner":            func(v *vault.Vault) string { return v.Owner },
	"label":            func(v *vault.Vault) string { return v.Label },
	"balance":          func(v *vault.Vault) string { return v.Balance.String() },
	"swap_amount":      func(v *vault.Vault) string { return v.SwapAmount.String() },
	"deposited_amount": func(v *vault.Vault) string { return v.DepositedAmount.String() },
	"swapped_amount":   func(v *vault.Vault) string { return v.SwappedAmount.String() },
	"received_amount":  func(v *vault.Vault) string { return v.ReceivedAmount.String() },
	"escrowed_amount":  func(v *vault.Vault) string { return v.EscrowedAmount.String() },
	"interval":         func(v *vault.Vault) string { return v.Interval.String() },
}

// assertCalls checks the message kinds performed by one step, in order.
// An empty kinds list asserts the step performed no calls.
func assertCalls(trace []TraceEvent, a Assertion) error {
	var got []string
	for _, ev := range trace {
		if ev.Step != a.Step {
			continue
		}
		for _, c := range ev.Calls {
			got = append(got, string(c.Kind))
		}
	}
	if !equalStrings(got, a.Kinds) {
		return &AssertionError{
			Type:     AssertCalls,
			Expected: fmt.Sprintf("step %d calls %v", a.Step, a.Kinds),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertTransfers checks every send the venue performed, in order.
func assertTransfers(trace []TraceEvent, p *venue.Paper, a Assertion) error {
	var got []string
	for _, t := range p.Transfers() {
		got = append(got, t.To+":"+t.Amount.String())
	}
	if !equalStrings(got, a.Transfers) {
		return &AssertionError{
			Type:     AssertTransfers,
			Expected: fmt.Sprintf("%v", a.Transfers),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertEvents checks the event kinds of one vault in height order.
func assertEvents(ctx context.Context, eng *engine.Engine, trace []TraceEvent, a Assertion) error {
	id := a.Vault
	events, err := eng.ListEvents(ctx, &id, engine.Page{})
	if err != nil {
		return fmt.Errorf("events: vault %d: %w", a.Vault, err)
	}
	var got []string
	for _, ev := range events {
		got = append(got, string(ev.Data.Kind()))
	}
	if !equalStrings(got, a.Kinds) {
		return &AssertionError{
			Type:     AssertEvents,
			Expected: fmt.Sprintf("vault %d events %v", a.Vault, a.Kinds),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertVaultState checks the named fields of one vault.
// Subset match - fields not named are ignored.
func assertVaultState(ctx context.Context, eng *engine.Engine, trace []TraceEvent, a Assertion) error {
	v, err := eng.GetVault(ctx, a.Vault)
	if err != nil {
		return &AssertionError{
			Type:     AssertVaultState,
			Expected: fmt.Sprintf("vault %d exists", a.Vault),
			Actual:   engine.MessageOf(err),
			Trace:    trace,
		}
	}

	var mismatches []string
	for _, field := range sortedKeys(a.Expect) {
		want := a.Expect[field]
		if got := vaultFields[field](v); got != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%q (expected %q)", field, got, want))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertVaultState,
			Expected: fmt.Sprintf("vault %d with %v", a.Vault, a.Expect),
			Actual:   strings.Join(mismatches, ", "),
			Trace:    trace,
		}
	}
	return nil
}

// assertTrigger checks the kind of one vault's trigger.
func assertTrigger(ctx context.Context, eng *engine.Engine, trace []TraceEvent, a Assertion) error {
	got := "none"
	tr, err := eng.GetTrigger(ctx, a.Vault)
	switch {
	case err == nil:
		got = string(tr.Config.Kind())
	case !engine.IsNotFound(err):
		return fmt.Errorf("trigger: vault %d: %w", a.Vault, err)
	}
	if got != a.Trigger {
		return &AssertionError{
			Type:     AssertTrigger,
			Expected: fmt.Sprintf("vault %d trigger %s", a.Vault, a.Trigger),
			Actual:   got,
			Trace:    trace,
		}
	}
	return nil
}

// assertReplay folds every vault's event log and compares the totals
// with the stored vault.
func assertReplay(ctx context.Context, st *store.Store, trace []TraceEvent) error {
	report, err := replay.Run(ctx, st, 100)
	if err != nil {
		return err
	}
	if report.OK() {
		return nil
	}
	var lines []string
	for _, m := range report.Mismatches {
		lines = append(lines, m.String())
	}
	return &AssertionError{
		Type:     AssertReplay,
		Expected: "every vault matches its event log",
		Actual:   strings.Join(lines, "; "),
		Trace:    trace,
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Engine *engine.Engine
	Venue  *venue.Paper
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides ledger and venue access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCalls:
			err = assertCalls(result.Trace, assertion)
		case AssertTransfers:
			if actx == nil || actx.Venue == nil {
				err = fmt.Errorf("assertion[%d]: transfers requires venue context", i)
			} else {
				err = assertTransfers(result.Trace, actx.Venue, assertion)
			}
		case AssertEvents, AssertVaultState, AssertTrigger:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertEvents:
				err = assertEvents(actx.Ctx, actx.Engine, result.Trace, assertion)
			case AssertVaultState:
				err = assertVaultState(actx.Ctx, actx.Engine, result.Trace, assertion)
			default:
				err = assertTrigger(actx.Ctx, actx.Engine, result.Trace, assertion)
			}
		case AssertReplay:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: replay requires database context", i)
			} else {
				err = assertReplay(actx.Ctx, actx.Store, result.Trace)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
