package vault

import (
	"fmt"
	"slices"

	"cosmossdk.io/math"
)

// FeeCollector receives a share of every fee charged.
type FeeCollector struct {
	Address    string         `json:"address"`
	Allocation math.LegacyDec `json:"allocation"`
}

// Config is the ledger-wide configuration. It lives in the store and only
// the admin may change it.
type Config struct {
	Admin                    string         `json:"admin"`
	Executors                []string       `json:"executors"`
	FeeCollectors            []FeeCollector `json:"fee_collectors"`
	AutomationFeePercent     math.LegacyDec `json:"automation_fee_percent"`
	PerformanceFeePercent    math.LegacyDec `json:"performance_fee_percent"`
	DefaultPageLimit         uint32         `json:"default_page_limit"`
	MaxPageLimit             uint32         `json:"max_page_limit"`
	Paused                   bool           `json:"paused"`
	EscrowLevel              math.LegacyDec `json:"escrow_level"`
	TwapPeriodSeconds        uint64         `json:"twap_period_seconds"`
	DefaultSlippageTolerance math.LegacyDec `json:"default_slippage_tolerance"`
	ExchangeAddress          string         `json:"exchange_address"`
	StakingDenom             string         `json:"staking_denom,omitempty"`
}

// DefaultConfig returns the values a fresh ledger starts from.
func DefaultConfig(admin string) Config {
	return Config{
		Admin:                    admin,
		Executors:                []string{admin},
		FeeCollectors:            []FeeCollector{{Address: admin, Allocation: math.LegacyOneDec()}},
		AutomationFeePercent:     math.LegacyMustNewDecFromStr("0.0075"),
		PerformanceFeePercent:    math.LegacyMustNewDecFromStr("0.2"),
		DefaultPageLimit:         30,
		MaxPageLimit:             1000,
		EscrowLevel:              math.LegacyMustNewDecFromStr("0.05"),
		TwapPeriodSeconds:        60,
		DefaultSlippageTolerance: math.LegacyMustNewDecFromStr("0.02"),
	}
}

// IsAdmin reports whether address is the admin.
func (c *Config) IsAdmin(address string) bool {
	return address != "" && address == c.Admin
}

// IsExecutor reports whether address may run keeper operations. The admin
// always may.
func (c *Config) IsExecutor(address string) bool {
	return c.IsAdmin(address) || slices.Contains(c.Executors, address)
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Admin == "" {
		return fmt.Errorf("admin is required")
	}
	if len(c.FeeCollectors) == 0 {
		return fmt.Errorf("at least one fee collector is required")
	}
	total := math.LegacyZeroDec()
	for _, fc := range c.FeeCollectors {
		if fc.Address == "" {
			return fmt.Errorf("fee collector address is required")
		}
		if fc.Allocation.IsNil() || !fc.Allocation.IsPositive() {
			return fmt.Errorf("fee collector allocations must be greater than 0")
		}
		total = total.Add(fc.Allocation)
	}
	if !total.Equal(math.LegacyOneDec()) {
		return fmt.Errorf("fee collector allocations must add up to 1")
	}
	for name, d := range map[string]math.LegacyDec{
		"automation_fee_percent":     c.AutomationFeePercent,
		"performance_fee_percent":    c.PerformanceFeePercent,
		"escrow_level":               c.EscrowLevel,
		"default_slippage_tolerance": c.DefaultSlippageTolerance,
	} {
		if err := validateFraction(name, d); err != nil {
			return err
		}
	}
	if c.DefaultPageLimit == 0 {
		return fmt.Errorf("default_page_limit must be greater than 0")
	}
	if c.MaxPageLimit < c.DefaultPageLimit {
		return fmt.Errorf("max_page_limit must be at least default_page_limit")
	}
	return nil
}

func validateFraction(name string, d math.LegacyDec) error {
	if d.IsNil() || d.IsNegative() || d.GT(math.LegacyOneDec()) {
		return fmt.Errorf("%s must be between 0 and 1", name)
	}
	return nil
}
