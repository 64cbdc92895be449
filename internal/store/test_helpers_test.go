package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestVault builds a minimal active vault.
func createTestVault(id uint64, owner string, status vault.Status) *vault.Vault {
	return &vault.Vault{
		ID:                id,
		CreatedAt:         testEpoch,
		Owner:             owner,
		Status:            status,
		Destinations:      vault.DefaultDestinations(owner),
		Balance:           coin.NewInt64("uatom", 1000),
		TargetDenom:       "uosmo",
		SlippageTolerance: math.LegacyMustNewDecFromStr("0.02"),
		SwapAmount:        math.NewInt(100),
		Interval:          trigger.Interval{Kind: trigger.Daily},
		EscrowLevel:       math.LegacyZeroDec(),
		DepositedAmount:   coin.NewInt64("uatom", 1000),
		SwappedAmount:     coin.Zero("uatom"),
		ReceivedAmount:    coin.Zero("uosmo"),
		EscrowedAmount:    coin.Zero("uosmo"),
	}
}

// mustUpdate runs fn in a transaction and fails the test on error.
func mustUpdate(t *testing.T, s *Store, fn func(*Tx) error) {
	t.Helper()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
}

func uptr(v uint64) *uint64 { return &v }
