package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/PrismoFinance/bounties/internal/trigger"
)

// SaveTrigger writes the vault's trigger, replacing any existing one.
func (t *Tx) SaveTrigger(ctx context.Context, tr trigger.Trigger) error {
	data, err := trigger.EncodeConfig(tr.Config)
	if err != nil {
		return fmt.Errorf("save trigger: %w", err)
	}

	var (
		targetTime sql.NullInt64
		orderIdx   sql.NullString
	)
	switch c := tr.Config.(type) {
	case trigger.Time:
		targetTime = sql.NullInt64{Int64: c.TargetTime.UnixNano(), Valid: true}
	case trigger.Price:
		orderIdx = sql.NullString{String: c.OrderIdx, Valid: c.OrderIdx != ""}
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO triggers (vault_id, kind, target_time, order_idx, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(vault_id) DO UPDATE SET
			kind = excluded.kind,
			target_time = excluded.target_time,
			order_idx = excluded.order_idx,
			data = excluded.data
	`, tr.VaultID, string(tr.Config.Kind()), targetTime, orderIdx, string(data))
	if err != nil {
		return fmt.Errorf("save trigger for vault %d: %w", tr.VaultID, err)
	}
	return nil
}

// GetTrigger returns the vault's trigger, or ErrNotFound.
func (t *Tx) GetTrigger(ctx context.Context, vaultID uint64) (*trigger.Trigger, error) {
	return t.getTrigger(ctx, `SELECT vault_id, kind, data FROM triggers WHERE vault_id = ?`, vaultID)
}

// GetTriggerByOrderIdx returns the price trigger holding the venue order,
// or ErrNotFound.
func (t *Tx) GetTriggerByOrderIdx(ctx context.Context, orderIdx string) (*trigger.Trigger, error) {
	return t.getTrigger(ctx, `SELECT vault_id, kind, data FROM triggers WHERE order_idx = ?`, orderIdx)
}

func (t *Tx) getTrigger(ctx context.Context, query string, arg any) (*trigger.Trigger, error) {
	var (
		vaultID uint64
		kind    string
		data    string
	)
	err := t.tx.QueryRowContext(ctx, query, arg).Scan(&vaultID, &kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trigger %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	cfg, err := trigger.DecodeConfig(trigger.Kind(kind), []byte(data))
	if err != nil {
		return nil, err
	}
	return &trigger.Trigger{VaultID: vaultID, Config: cfg}, nil
}

// DeleteTrigger removes the vault's trigger. Deleting a missing trigger is
// not an error.
func (t *Tx) DeleteTrigger(ctx context.Context, vaultID uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM triggers WHERE vault_id = ?`, vaultID); err != nil {
		return fmt.Errorf("delete trigger for vault %d: %w", vaultID, err)
	}
	return nil
}

// DueTimeTriggerIDs returns vault ids whose time trigger is due at now,
// earliest target first.
func (t *Tx) DueTimeTriggerIDs(ctx context.Context, now time.Time, limit uint32) ([]uint64, error) {
	lim := int64(-1)
	if limit > 0 {
		lim = int64(limit)
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT vault_id FROM triggers
		WHERE kind = 'time' AND target_time <= ?
		ORDER BY target_time ASC, vault_id ASC
		LIMIT ?
	`, now.UnixNano(), lim)
	if err != nil {
		return nil, fmt.Errorf("query due triggers: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due trigger: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due triggers: %w", err)
	}
	return ids, nil
}

// PriceOrder is a price trigger's vault and venue order.
type PriceOrder struct {
	VaultID  uint64
	OrderIdx string
}

// PriceTriggerOrders returns the orders behind price triggers, lowest
// vault id first.
func (t *Tx) PriceTriggerOrders(ctx context.Context, limit uint32) ([]PriceOrder, error) {
	lim := int64(-1)
	if limit > 0 {
		lim = int64(limit)
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT vault_id, order_idx FROM triggers
		WHERE kind = 'price' AND order_idx IS NOT NULL AND order_idx != ''
		ORDER BY vault_id ASC
		LIMIT ?
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("query price triggers: %w", err)
	}
	defer rows.Close()

	orders := []PriceOrder{}
	for rows.Next() {
		var o PriceOrder
		if err := rows.Scan(&o.VaultID, &o.OrderIdx); err != nil {
			return nil, fmt.Errorf("scan price trigger: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price triggers: %w", err)
	}
	return orders, nil
}
