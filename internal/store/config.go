package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PrismoFinance/bounties/internal/vault"
)

// GetConfig returns the ledger config, or ErrNotFound before bootstrap.
func (t *Tx) GetConfig(ctx context.Context) (vault.Config, error) {
	var data string
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM ledger_config WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.Config{}, fmt.Errorf("ledger config: %w", ErrNotFound)
	}
	if err != nil {
		return vault.Config{}, fmt.Errorf("get ledger config: %w", err)
	}
	var cfg vault.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return vault.Config{}, fmt.Errorf("decode ledger config: %w", err)
	}
	return cfg, nil
}

// SaveConfig replaces the ledger config.
func (t *Tx) SaveConfig(ctx context.Context, cfg vault.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save ledger config: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO ledger_config (id, data) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, string(data))
	if err != nil {
		return fmt.Errorf("save ledger config: %w", err)
	}
	return nil
}
