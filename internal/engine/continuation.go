package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/trigger"
)

// Continuation is the durable record that bridges an issued call and its
// result. It is written in the same transaction that returns the call and
// consumed by the resume that handles the result.
//
// Trigger is the configuration that fired, so the resume can reschedule
// from it. Committed is set while SwapAmount sits with the venue and has
// not yet been settled against the balance. Pending holds follow-up
// destination calls whose results are still outstanding, oldest first.
type Continuation struct {
	VaultID    uint64           `json:"vault_id"`
	RequestID  string           `json:"request_id"`
	Trigger    *trigger.Trigger `json:"trigger,omitempty"`
	SwapAmount math.Int         `json:"swap_amount"`
	Committed  bool             `json:"committed,omitempty"`
	Price      math.LegacyDec   `json:"price"`
	Pending    []PendingAction  `json:"pending,omitempty"`
}

// PendingAction is a destination follow-up call awaiting its result.
type PendingAction struct {
	DestinationIndex int         `json:"destination_index"`
	Call             Call        `json:"call"`
	Funds            []coin.Coin `json:"funds"`
}

// loadContinuation reads the vault's entry. A missing entry means a result
// arrived that nothing is waiting for, which is fatal.
func loadContinuation(s *session, vaultID uint64) (*Continuation, error) {
	data, err := s.tx.GetContinuation(s.ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewFatalError(vaultID, fmt.Errorf("no continuation for vault %d", vaultID))
	}
	if err != nil {
		return nil, err
	}
	var c Continuation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode continuation for vault %d: %w", vaultID, err)
	}
	return &c, nil
}

func saveContinuation(s *session, c *Continuation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode continuation for vault %d: %w", c.VaultID, err)
	}
	return s.tx.SaveContinuation(s.ctx, c.VaultID, data)
}

// findContinuation reads the vault's entry, returning nil when there is
// none.
func findContinuation(s *session, vaultID uint64) (*Continuation, error) {
	ok, err := hasContinuation(s, vaultID)
	if err != nil || !ok {
		return nil, err
	}
	return loadContinuation(s, vaultID)
}

// committedAmount is the part of the balance held by an outstanding call.
func committedAmount(c *Continuation) math.Int {
	if c == nil || !c.Committed || c.SwapAmount.IsNil() {
		return math.ZeroInt()
	}
	return c.SwapAmount
}

// hasContinuation reports whether the vault has an outstanding call.
func hasContinuation(s *session, vaultID uint64) (bool, error) {
	_, err := s.tx.GetContinuation(s.ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// settle saves c while follow-ups remain and deletes it otherwise.
func settle(s *session, c *Continuation) error {
	if len(c.Pending) > 0 {
		return saveContinuation(s, c)
	}
	return s.tx.DeleteContinuation(s.ctx, c.VaultID)
}
