package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/PrismoFinance/bounties/internal/dispatch"
	"github.com/PrismoFinance/bounties/internal/engine"
)

// RenderTrace renders a trace as stable text, one line per request
// followed by its attributes (sorted) and its calls (in execution order):
//
//	02 execute_trigger keeper vault=1 ok
//	   swap_amount = 100
//	   swap 100uosmo -> uusdc => 100uusdc [after_swap]
//	   send 99uusdc -> owner => ok
func RenderTrace(trace []TraceEvent) string {
	var buf strings.Builder
	for _, ev := range trace {
		fmt.Fprintf(&buf, "%02d %s %s", ev.Step, ev.Request, ev.Sender)
		if ev.VaultID != 0 {
			fmt.Fprintf(&buf, " vault=%d", ev.VaultID)
		}
		if ev.OK() {
			buf.WriteString(" ok\n")
		} else {
			fmt.Fprintf(&buf, " %s: %s\n", ev.Outcome, ev.Error)
		}
		for _, k := range sortedKeys(ev.Attributes) {
			fmt.Fprintf(&buf, "   %s = %s\n", k, ev.Attributes[k])
		}
		for _, c := range ev.Calls {
			fmt.Fprintf(&buf, "   %s\n", renderCall(c))
		}
	}
	return buf.String()
}

func renderCall(c dispatch.CallRecord) string {
	var line string
	switch m := c.Msg.(type) {
	case engine.SendMsg:
		line = fmt.Sprintf("send %s -> %s", m.Amount, m.To)
	case engine.SwapMsg:
		line = fmt.Sprintf("swap %s -> %s", m.Offer, m.TargetDenom)
	case engine.DelegateMsg:
		line = fmt.Sprintf("delegate %s -> %s", m.Amount, m.Validator)
	case engine.InvokeMsg:
		line = fmt.Sprintf("invoke %s %s", m.Contract, m.Msg)
	case engine.PlaceLimitOrderMsg:
		line = fmt.Sprintf("place_limit_order %s -> %s @ %s", m.Offer, m.TargetDenom, m.TargetPrice)
	case engine.RetractOrderMsg:
		line = fmt.Sprintf("retract_order %s", m.OrderIdx)
	case engine.WithdrawOrderMsg:
		line = fmt.Sprintf("withdraw_order %s", m.OrderIdx)
	default:
		line = string(c.Kind)
	}

	switch {
	case !c.Result.OK():
		line += " => error: " + c.Result.Error
	case c.Result.Received.Denom != "":
		line += " => " + c.Result.Received.String()
	case c.Result.OrderIdx != "":
		line += " => order " + c.Result.OrderIdx
	default:
		line += " => ok"
	}
	if c.Resumed {
		line += " [" + string(c.ReplyID) + "]"
	}
	return line
}

// RunWithGolden executes a scenario and compares the rendered trace against
// a golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) {
	t.Helper()

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, []byte(RenderTrace(result.Trace)))
}
