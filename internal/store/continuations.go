package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveContinuation writes the pending-operation record for a vault,
// replacing any previous one. The payload is opaque to the store.
func (t *Tx) SaveContinuation(ctx context.Context, vaultID uint64, data []byte) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO continuations (vault_id, data) VALUES (?, ?)
		ON CONFLICT(vault_id) DO UPDATE SET data = excluded.data
	`, vaultID, string(data))
	if err != nil {
		return fmt.Errorf("save continuation for vault %d: %w", vaultID, err)
	}
	return nil
}

// GetContinuation returns the vault's pending-operation record, or
// ErrNotFound.
func (t *Tx) GetContinuation(ctx context.Context, vaultID uint64) ([]byte, error) {
	var data string
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM continuations WHERE vault_id = ?`, vaultID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("continuation for vault %d: %w", vaultID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get continuation for vault %d: %w", vaultID, err)
	}
	return []byte(data), nil
}

// DeleteContinuation removes the vault's pending-operation record.
func (t *Tx) DeleteContinuation(ctx context.Context, vaultID uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM continuations WHERE vault_id = ?`, vaultID); err != nil {
		return fmt.Errorf("delete continuation for vault %d: %w", vaultID, err)
	}
	return nil
}
