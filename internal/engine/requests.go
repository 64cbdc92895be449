package engine

import (
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// Request is an inbound command. Implemented by the request types in this
// file only.
type Request interface {
	RequestName() string
	sealed()
}

// CreateVault opens a new vault. Owner defaults to Sender. SourceDenom may
// be omitted when Funds carries the initial deposit.
type CreateVault struct {
	Sender                string
	Owner                 string
	Label                 string
	Destinations          []vault.Destination
	SourceDenom           string
	TargetDenom           string
	Route                 []string
	SlippageTolerance     *math.LegacyDec
	MinimumReceiveAmount  *math.Int
	SwapAmount            math.Int
	Interval              trigger.Interval
	TargetStartTime       *time.Time
	TargetReceiveAmount   *math.Int
	PerformanceAssessment bool
	SwapAdjustment        *vault.SwapAdjustment
	Funds                 []coin.Coin
}

// Deposit adds funds to the vault. Address must be the vault owner.
type Deposit struct {
	Sender  string
	Address string
	VaultID uint64
	Funds   []coin.Coin
}

// UpdateVault changes mutable vault fields. Nil fields are left alone.
type UpdateVault struct {
	Sender               string
	VaultID              uint64
	Label                *string
	Destinations         *[]vault.Destination
	SlippageTolerance    *math.LegacyDec
	MinimumReceiveAmount *math.Int
	Interval             *trigger.Interval
	SwapAmount           *math.Int
	SwapAdjustment       *vault.SwapAdjustment
}

// CancelVault refunds the balance and stops the vault for good.
type CancelVault struct {
	Sender  string
	VaultID uint64
}

// ExecuteTrigger fires the vault's due trigger.
type ExecuteTrigger struct {
	Sender  string
	VaultID uint64
}

// DisburseEscrow releases the vault's escrow net of the performance fee.
type DisburseEscrow struct {
	Sender  string
	VaultID uint64
}

// UpdateConfig changes the ledger config. Admin only.
type UpdateConfig struct {
	Sender                   string
	Admin                    *string
	Executors                *[]string
	FeeCollectors            *[]vault.FeeCollector
	AutomationFeePercent     *math.LegacyDec
	PerformanceFeePercent    *math.LegacyDec
	DefaultPageLimit         *uint32
	MaxPageLimit             *uint32
	Paused                   *bool
	EscrowLevel              *math.LegacyDec
	TwapPeriodSeconds        *uint64
	DefaultSlippageTolerance *math.LegacyDec
	ExchangeAddress          *string
	StakingDenom             *string
}

func (CreateVault) RequestName() string    { return "create_vault" }
func (Deposit) RequestName() string        { return "deposit" }
func (UpdateVault) RequestName() string    { return "update_vault" }
func (CancelVault) RequestName() string    { return "cancel_vault" }
func (ExecuteTrigger) RequestName() string { return "execute_trigger" }
func (DisburseEscrow) RequestName() string { return "disburse_escrow" }
func (UpdateConfig) RequestName() string   { return "update_config" }

func (CreateVault) sealed()    {}
func (Deposit) sealed()        {}
func (UpdateVault) sealed()    {}
func (CancelVault) sealed()    {}
func (ExecuteTrigger) sealed() {}
func (DisburseEscrow) sealed() {}
func (UpdateConfig) sealed()   {}
