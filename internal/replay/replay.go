// Package replay rebuilds each vault's running totals from the event log
// and checks them against the stored vault records.
//
// The event log is the audit trail; vault rows are a cache of its fold.
// A mismatch means a request committed vault state without the matching
// event, or the other way round.
package replay

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// Totals is the fold of one vault's events.
type Totals struct {
	VaultID         uint64   `json:"vault_id"`
	Events          int      `json:"events"`
	Deposited       math.Int `json:"deposited"`
	Swapped         math.Int `json:"swapped"`
	Received        math.Int `json:"received"`
	Fees            math.Int `json:"fees"`
	Escrowed        math.Int `json:"escrowed"`
	Disbursed       math.Int `json:"disbursed"`
	PerformanceFees math.Int `json:"performance_fees"`
	Executions      int      `json:"executions"`
	Skips           int      `json:"skips"`
	Cancelled       bool     `json:"cancelled"`
	Reserved        math.Int `json:"reserved"`

	// escrowBreaks counts disbursements whose parts did not add up to the
	// escrow outstanding when they happened.
	escrowBreaks int
	// heightBreaks counts events recorded at a lower height than the one
	// before them.
	heightBreaks int
}

// Mismatch is one stored field that disagrees with the replayed value.
type Mismatch struct {
	VaultID  uint64 `json:"vault_id"`
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("vault %d: %s stored %s, replayed %s", m.VaultID, m.Field, m.Stored, m.Replayed)
}

// Report summarizes a replay over the whole ledger.
type Report struct {
	Vaults     int        `json:"vaults"`
	Events     int        `json:"events"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether every vault matched its event log.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Fold replays events, oldest first, for v. The vault supplies the escrow
// level and whether escrow applies at all; neither changes after creation.
func Fold(v *vault.Vault, events []event.Event) Totals {
	t := Totals{
		VaultID:         v.ID,
		Events:          len(events),
		Deposited:       math.ZeroInt(),
		Swapped:         math.ZeroInt(),
		Received:        math.ZeroInt(),
		Fees:            math.ZeroInt(),
		Escrowed:        math.ZeroInt(),
		Disbursed:       math.ZeroInt(),
		PerformanceFees: math.ZeroInt(),
		Reserved:        math.ZeroInt(),
	}

	var lastHeight int64
	for i, ev := range events {
		if i > 0 && ev.Height < lastHeight {
			t.heightBreaks++
		}
		lastHeight = ev.Height

		switch d := ev.Data.(type) {
		case event.FundsDeposited:
			t.Deposited = t.Deposited.Add(d.Amount.Amount)
		case event.ExecutionCompleted:
			t.Executions++
			t.Swapped = t.Swapped.Add(d.Sent.Amount)
			t.Received = t.Received.Add(d.Received.Amount)
			t.Fees = t.Fees.Add(d.Fee.Amount)
			t.Reserved = math.ZeroInt()
			if v.PerformanceAssessment != nil {
				net := coin.SubFloor(d.Received.Amount, d.Fee.Amount)
				t.Escrowed = t.Escrowed.Add(coin.MulDec(net, v.EscrowLevel))
			}
		case event.ExecutionSkipped:
			t.Skips++
			t.Reserved = math.ZeroInt()
		case event.EscrowDisbursed:
			paid := d.AmountDisbursed.Amount.Add(d.PerformanceFee.Amount)
			if !paid.Equal(t.Escrowed) {
				t.escrowBreaks++
			}
			t.Disbursed = t.Disbursed.Add(d.AmountDisbursed.Amount)
			t.PerformanceFees = t.PerformanceFees.Add(d.PerformanceFee.Amount)
			t.Escrowed = math.ZeroInt()
		case event.Cancelled:
			t.Cancelled = true
			if d.Reserved != nil {
				t.Reserved = d.Reserved.Amount
			}
		}
	}
	return t
}

// Verify compares the stored vault with its replayed totals.
func Verify(v *vault.Vault, t Totals) []Mismatch {
	var out []Mismatch
	check := func(field string, stored, replayed math.Int) {
		if !stored.Equal(replayed) {
			out = append(out, Mismatch{VaultID: v.ID, Field: field, Stored: stored.String(), Replayed: replayed.String()})
		}
	}

	check("deposited_amount", amountOf(v.DepositedAmount), t.Deposited)
	check("swapped_amount", amountOf(v.SwappedAmount), t.Swapped)
	check("received_amount", amountOf(v.ReceivedAmount), t.Received)
	check("escrowed_amount", amountOf(v.EscrowedAmount), t.Escrowed)

	balance := coin.SubFloor(t.Deposited, t.Swapped)
	if t.Cancelled {
		balance = t.Reserved
	}
	check("balance", amountOf(v.Balance), balance)

	if v.IsCancelled() != t.Cancelled {
		out = append(out, Mismatch{
			VaultID:  v.ID,
			Field:    "status",
			Stored:   v.Status.String(),
			Replayed: fmt.Sprintf("cancelled=%t", t.Cancelled),
		})
	}
	if t.escrowBreaks > 0 {
		out = append(out, Mismatch{
			VaultID:  v.ID,
			Field:    "escrow_disbursed",
			Stored:   "disbursed + fee",
			Replayed: fmt.Sprintf("%d disbursements differ from escrow", t.escrowBreaks),
		})
	}
	if t.heightBreaks > 0 {
		out = append(out, Mismatch{
			VaultID:  v.ID,
			Field:    "height",
			Stored:   "non-decreasing",
			Replayed: fmt.Sprintf("%d events out of order", t.heightBreaks),
		})
	}
	return out
}

// Run replays every vault in s, pageSize vaults per read transaction.
// A zero pageSize reads all vaults at once.
func Run(ctx context.Context, s *store.Store, pageSize uint32) (Report, error) {
	var (
		report Report
		after  *uint64
	)
	for {
		var vaults []vault.Vault
		var totals []Totals
		err := s.View(ctx, func(tx *store.Tx) error {
			var err error
			vaults, err = tx.ListVaults(ctx, store.ListOptions{StartAfter: after, Limit: pageSize})
			if err != nil {
				return err
			}
			totals = make([]Totals, len(vaults))
			for i := range vaults {
				events, err := tx.ListEventsByResource(ctx, vaults[i].ID, store.ListOptions{})
				if err != nil {
					return err
				}
				totals[i] = Fold(&vaults[i], events)
			}
			return nil
		})
		if err != nil {
			return report, fmt.Errorf("replay: %w", err)
		}

		for i := range vaults {
			report.Vaults++
			report.Events += totals[i].Events
			report.Mismatches = append(report.Mismatches, Verify(&vaults[i], totals[i])...)
		}

		if pageSize == 0 || len(vaults) < int(pageSize) {
			return report, nil
		}
		last := vaults[len(vaults)-1].ID
		after = &last
	}
}

func amountOf(c coin.Coin) math.Int {
	if c.Amount.IsNil() {
		return math.ZeroInt()
	}
	return c.Amount
}
