package engine

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/performance"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// Page selects a window of an id-ordered listing. StartAfter is
// exclusive. A nil Limit means the ledger's default page limit.
type Page struct {
	StartAfter *uint64
	Limit      *uint32
	Reverse    bool
}

// VaultFilter narrows ListVaults. Zero values match everything.
type VaultFilter struct {
	Owner  string
	Status *vault.Status
}

// Performance is a vault's performance fee and factor at the current TWAP.
type Performance struct {
	Fee    coin.Coin      `json:"fee"`
	Factor math.LegacyDec `json:"factor"`
}

// view runs fn in a read-only transaction, mapping store misses to
// NOT_FOUND.
func (e *Engine) view(ctx context.Context, fn func(*store.Tx) error) error {
	err := e.store.View(ctx, fn)
	if err != nil {
		return asEngineError(err)
	}
	return nil
}

// listOptions resolves a page against the ledger's limits.
func listOptions(cfg vault.Config, p Page) (store.ListOptions, error) {
	limit := cfg.DefaultPageLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	if limit > cfg.MaxPageLimit {
		return store.ListOptions{}, NewValidationError("limit cannot be greater than %d.", cfg.MaxPageLimit)
	}
	return store.ListOptions{StartAfter: p.StartAfter, Limit: limit, Reverse: p.Reverse}, nil
}

// Config returns the ledger config.
func (e *Engine) Config(ctx context.Context) (vault.Config, error) {
	var cfg vault.Config
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		cfg, err = tx.GetConfig(ctx)
		return err
	})
	return cfg, err
}

// GetVault returns one vault.
func (e *Engine) GetVault(ctx context.Context, id uint64) (*vault.Vault, error) {
	var v *vault.Vault
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		v, err = tx.GetVault(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError("vault", id)
		}
		return err
	})
	return v, err
}

// ListVaults returns a page of vaults, optionally by owner and status.
func (e *Engine) ListVaults(ctx context.Context, f VaultFilter, p Page) ([]vault.Vault, error) {
	var out []vault.Vault
	err := e.view(ctx, func(tx *store.Tx) error {
		cfg, err := tx.GetConfig(ctx)
		if err != nil {
			return err
		}
		opts, err := listOptions(cfg, p)
		if err != nil {
			return err
		}
		switch {
		case f.Owner != "":
			out, err = tx.ListVaultsByOwner(ctx, f.Owner, f.Status, opts)
		case f.Status != nil:
			out, err = tx.ListVaultsByStatus(ctx, *f.Status, opts)
		default:
			out, err = tx.ListVaults(ctx, opts)
		}
		return err
	})
	return out, err
}

// ListEvents returns a page of events, globally or for one vault.
func (e *Engine) ListEvents(ctx context.Context, resourceID *uint64, p Page) ([]event.Event, error) {
	var out []event.Event
	err := e.view(ctx, func(tx *store.Tx) error {
		cfg, err := tx.GetConfig(ctx)
		if err != nil {
			return err
		}
		opts, err := listOptions(cfg, p)
		if err != nil {
			return err
		}
		if resourceID != nil {
			out, err = tx.ListEventsByResource(ctx, *resourceID, opts)
		} else {
			out, err = tx.ListEvents(ctx, opts)
		}
		return err
	})
	return out, err
}

// GetTrigger returns the vault's trigger, or NOT_FOUND.
func (e *Engine) GetTrigger(ctx context.Context, vaultID uint64) (*trigger.Trigger, error) {
	var tr *trigger.Trigger
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		tr, err = tx.GetTrigger(ctx, vaultID)
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError("trigger for vault", vaultID)
		}
		return err
	})
	return tr, err
}

// DueTriggerIDs returns the ids of vaults whose time trigger is due at
// now, earliest first. A zero limit means no limit.
func (e *Engine) DueTriggerIDs(ctx context.Context, now time.Time, limit uint32) ([]uint64, error) {
	var ids []uint64
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		ids, err = tx.DueTimeTriggerIDs(ctx, now, limit)
		return err
	})
	return ids, err
}

// DueEscrowTasks returns the disburse-escrow tasks due at now, earliest
// first. A zero limit means no limit.
func (e *Engine) DueEscrowTasks(ctx context.Context, now time.Time, limit uint32) ([]store.EscrowTask, error) {
	var tasks []store.EscrowTask
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		tasks, err = tx.DueDisburseEscrowTasks(ctx, now, limit)
		return err
	})
	return tasks, err
}

// ExpectedCompletion projects when the vault would finish executing.
func (e *Engine) ExpectedCompletion(ctx context.Context, vaultID uint64) (time.Time, error) {
	v, err := e.GetVault(ctx, vaultID)
	if err != nil {
		return time.Time{}, err
	}
	due, err := performance.ExpectedCompletionDate(v, e.now().UTC())
	if err != nil {
		return time.Time{}, NewPreconditionError(vaultID, "%v", err)
	}
	return due, nil
}

// GetPerformance prices the vault's performance against the current TWAP.
func (e *Engine) GetPerformance(ctx context.Context, vaultID uint64) (Performance, error) {
	var (
		v   *vault.Vault
		cfg vault.Config
	)
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		if cfg, err = tx.GetConfig(ctx); err != nil {
			return err
		}
		v, err = tx.GetVault(ctx, vaultID)
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError("vault", vaultID)
		}
		return err
	})
	if err != nil {
		return Performance{}, err
	}
	if v.PerformanceAssessment == nil {
		return Performance{}, NewValidationError("Vault %d does not have a performance assessment strategy", vaultID)
	}

	period := time.Duration(cfg.TwapPeriodSeconds) * time.Second
	price, err := e.prices.TWAP(ctx, v.SourceDenom(), v.TargetDenom, period, v.Route)
	if err != nil {
		return Performance{}, NewPreconditionError(vaultID, "unable to query twap price: %v", err)
	}
	return Performance{
		Fee:    performance.Fee(v, price, cfg.PerformanceFeePercent),
		Factor: performance.Factor(v, price),
	}, nil
}

// PendingOrders returns the venue orders behind price triggers. A zero
// limit means no limit.
func (e *Engine) PendingOrders(ctx context.Context, limit uint32) ([]store.PriceOrder, error) {
	var orders []store.PriceOrder
	err := e.view(ctx, func(tx *store.Tx) error {
		var err error
		orders, err = tx.PriceTriggerOrders(ctx, limit)
		return err
	})
	return orders, err
}
