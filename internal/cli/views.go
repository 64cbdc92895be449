package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PrismoFinance/bounties/internal/dispatch"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// traceView renders a dispatch trace. JSON output uses the trace's own
// field tags.
type traceView dispatch.Trace

func traceOutput(t dispatch.Trace) traceView { return traceView(t) }

func (t traceView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: ok", t.Request)

	keys := make([]string, 0, len(t.Attributes))
	for k := range t.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s = %s", k, t.Attributes[k])
	}

	for _, c := range t.Calls {
		outcome := "ok"
		if !c.Result.OK() {
			outcome = "failed: " + c.Result.Error
		} else if c.Result.Received.Denom != "" {
			outcome = "received " + c.Result.Received.String()
		}
		fmt.Fprintf(&b, "\n  call vault=%d %s %s", c.VaultID, c.Kind, outcome)
		if c.Resumed {
			fmt.Fprintf(&b, " (resumed %s)", c.ReplyID)
		}
	}
	return b.String()
}

type vaultView struct {
	*vault.Vault
}

func (v vaultView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Vault)
}

func (v vaultView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vault %d (%s)\n", v.ID, v.Status)
	fmt.Fprintf(&b, "  owner:     %s\n", v.Owner)
	if v.Label != "" {
		fmt.Fprintf(&b, "  label:     %s\n", v.Label)
	}
	fmt.Fprintf(&b, "  balance:   %s\n", v.Balance)
	fmt.Fprintf(&b, "  swap:      %s%s -> %s every %s\n", v.SwapAmount, v.SourceDenom(), v.TargetDenom, v.Interval)
	fmt.Fprintf(&b, "  deposited: %s\n", v.DepositedAmount)
	fmt.Fprintf(&b, "  swapped:   %s\n", v.SwappedAmount)
	fmt.Fprintf(&b, "  received:  %s\n", v.ReceivedAmount)
	fmt.Fprintf(&b, "  escrowed:  %s", v.EscrowedAmount)
	for _, d := range v.Destinations {
		kind := vault.ActionTransfer
		if d.Action != nil {
			kind = d.Action.Kind()
		}
		fmt.Fprintf(&b, "\n  dest:      %s %s (%s)", d.Address, d.Allocation, kind)
	}
	return b.String()
}

type vaultListView []vault.Vault

func (l vaultListView) String() string {
	if len(l) == 0 {
		return "No vaults"
	}
	lines := make([]string, 0, len(l))
	for _, v := range l {
		lines = append(lines, fmt.Sprintf("%-6d %-10s %-20s %s -> %s", v.ID, v.Status, v.Owner, v.Balance, v.TargetDenom))
	}
	return strings.Join(lines, "\n")
}

type eventListView []event.Event

func (l eventListView) String() string {
	if len(l) == 0 {
		return "No events"
	}
	lines := make([]string, 0, len(l))
	for _, ev := range l {
		lines = append(lines, fmt.Sprintf("%-6d vault=%-6d %s %s",
			ev.Height, ev.ResourceID, ev.Timestamp.UTC().Format(time.RFC3339), ev.Data.Kind()))
	}
	return strings.Join(lines, "\n")
}

type idListView []uint64

func (l idListView) String() string {
	if len(l) == 0 {
		return "Nothing due"
	}
	parts := make([]string, len(l))
	for i, id := range l {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, "\n")
}

type escrowTaskListView []store.EscrowTask

func (l escrowTaskListView) String() string {
	if len(l) == 0 {
		return "Nothing due"
	}
	lines := make([]string, 0, len(l))
	for _, t := range l {
		lines = append(lines, fmt.Sprintf("%-6d due %s", t.VaultID, t.DueAt.UTC().Format(time.RFC3339)))
	}
	return strings.Join(lines, "\n")
}
