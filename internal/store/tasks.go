package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EscrowTask is a deferred escrow release.
type EscrowTask struct {
	VaultID uint64    `json:"vault_id"`
	DueAt   time.Time `json:"due_at"`
}

// SaveDisburseEscrowTask records when the vault's escrow may be released.
// A later save for the same vault replaces the due time.
func (t *Tx) SaveDisburseEscrowTask(ctx context.Context, vaultID uint64, due time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO disburse_escrow_tasks (vault_id, due_at) VALUES (?, ?)
		ON CONFLICT(vault_id) DO UPDATE SET due_at = excluded.due_at
	`, vaultID, due.UnixNano())
	if err != nil {
		return fmt.Errorf("save disburse escrow task for vault %d: %w", vaultID, err)
	}
	return nil
}

// GetDisburseEscrowTask returns the vault's task, or ErrNotFound.
func (t *Tx) GetDisburseEscrowTask(ctx context.Context, vaultID uint64) (EscrowTask, error) {
	var due int64
	err := t.tx.QueryRowContext(ctx, `SELECT due_at FROM disburse_escrow_tasks WHERE vault_id = ?`, vaultID).Scan(&due)
	if errors.Is(err, sql.ErrNoRows) {
		return EscrowTask{}, fmt.Errorf("disburse escrow task for vault %d: %w", vaultID, ErrNotFound)
	}
	if err != nil {
		return EscrowTask{}, fmt.Errorf("get disburse escrow task for vault %d: %w", vaultID, err)
	}
	return EscrowTask{VaultID: vaultID, DueAt: time.Unix(0, due).UTC()}, nil
}

// DeleteDisburseEscrowTask removes the vault's task if present.
func (t *Tx) DeleteDisburseEscrowTask(ctx context.Context, vaultID uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM disburse_escrow_tasks WHERE vault_id = ?`, vaultID); err != nil {
		return fmt.Errorf("delete disburse escrow task for vault %d: %w", vaultID, err)
	}
	return nil
}

// DueDisburseEscrowTasks returns tasks due at or before now, earliest
// first.
func (t *Tx) DueDisburseEscrowTasks(ctx context.Context, now time.Time, limit uint32) ([]EscrowTask, error) {
	lim := int64(-1)
	if limit > 0 {
		lim = int64(limit)
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT vault_id, due_at FROM disburse_escrow_tasks
		WHERE due_at <= ?
		ORDER BY due_at ASC, vault_id ASC
		LIMIT ?
	`, now.UnixNano(), lim)
	if err != nil {
		return nil, fmt.Errorf("query due escrow tasks: %w", err)
	}
	defer rows.Close()

	tasks := []EscrowTask{}
	for rows.Next() {
		var (
			task EscrowTask
			due  int64
		)
		if err := rows.Scan(&task.VaultID, &due); err != nil {
			return nil, fmt.Errorf("scan escrow task: %w", err)
		}
		task.DueAt = time.Unix(0, due).UTC()
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow tasks: %w", err)
	}
	return tasks, nil
}
