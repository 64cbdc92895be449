package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PrismoFinance/bounties/internal/vault"
)

// InsertVault writes a new vault. The id must already be assigned.
func (t *Tx) InsertVault(ctx context.Context, v *vault.Vault) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO vaults (id, owner, status, data) VALUES (?, ?, ?, ?)
	`, v.ID, v.Owner, v.Status.String(), string(data))
	if err != nil {
		return fmt.Errorf("insert vault %d: %w", v.ID, err)
	}
	return nil
}

// UpdateVault overwrites an existing vault and its index columns.
func (t *Tx) UpdateVault(ctx context.Context, v *vault.Vault) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("update vault: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE vaults SET owner = ?, status = ?, data = ? WHERE id = ?
	`, v.Owner, v.Status.String(), string(data), v.ID)
	if err != nil {
		return fmt.Errorf("update vault %d: %w", v.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vault %d: %w", v.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update vault %d: %w", v.ID, ErrNotFound)
	}
	return nil
}

// GetVault returns the vault with id, or ErrNotFound.
func (t *Tx) GetVault(ctx context.Context, id uint64) (*vault.Vault, error) {
	var data string
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM vaults WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vault %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vault %d: %w", id, err)
	}
	return decodeVault(data)
}

// ListVaults returns vaults in id order.
func (t *Tx) ListVaults(ctx context.Context, opts ListOptions) ([]vault.Vault, error) {
	page, suffix, args := opts.pageClause("id")
	query := fmt.Sprintf("SELECT data FROM vaults %s %s", where(page), suffix)
	return t.queryVaults(ctx, query, args...)
}

// ListVaultsByOwner returns an owner's vaults in id order, optionally
// restricted to one status. Served by the owner and (owner, status)
// indexes.
func (t *Tx) ListVaultsByOwner(ctx context.Context, owner string, status *vault.Status, opts ListOptions) ([]vault.Vault, error) {
	predicates := []string{"owner = ?"}
	args := []any{owner}
	if status != nil {
		predicates = append(predicates, "status = ?")
		args = append(args, status.String())
	}
	page, suffix, pageArgs := opts.pageClause("id")
	predicates = append(predicates, page)
	args = append(args, pageArgs...)

	query := fmt.Sprintf("SELECT data FROM vaults %s %s", where(predicates...), suffix)
	return t.queryVaults(ctx, query, args...)
}

// ListVaultsByStatus returns vaults with status in id order. Served by
// the status index.
func (t *Tx) ListVaultsByStatus(ctx context.Context, status vault.Status, opts ListOptions) ([]vault.Vault, error) {
	page, suffix, pageArgs := opts.pageClause("id")
	args := append([]any{status.String()}, pageArgs...)
	query := fmt.Sprintf("SELECT data FROM vaults %s %s", where("status = ?", page), suffix)
	return t.queryVaults(ctx, query, args...)
}

func (t *Tx) queryVaults(ctx context.Context, query string, args ...any) ([]vault.Vault, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	vaults := []vault.Vault{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		v, err := decodeVault(data)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}

func decodeVault(data string) (*vault.Vault, error) {
	var v vault.Vault
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	return &v, nil
}
