package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/vault"
)

// LedgerConfig is the initial ledger configuration written to a fresh
// store. Decimals are strings so they round-trip exactly.
type LedgerConfig struct {
	Admin                    string               `yaml:"admin"`
	Executors                []string             `yaml:"executors"`
	FeeCollectors            []FeeCollectorConfig `yaml:"fee_collectors"`
	AutomationFeePercent     string               `yaml:"automation_fee_percent"`
	PerformanceFeePercent    string               `yaml:"performance_fee_percent"`
	DefaultPageLimit         uint32               `yaml:"default_page_limit"`
	MaxPageLimit             uint32               `yaml:"max_page_limit"`
	Paused                   bool                 `yaml:"paused"`
	EscrowLevel              string               `yaml:"escrow_level"`
	TwapPeriod               string               `yaml:"twap_period"`
	DefaultSlippageTolerance string               `yaml:"default_slippage_tolerance"`
	ExchangeAddress          string               `yaml:"exchange_address"`
	StakingDenom             string               `yaml:"staking_denom"`
}

type FeeCollectorConfig struct {
	Address    string `yaml:"address"`
	Allocation string `yaml:"allocation"`
}

// VaultConfig converts l to a ledger config, starting from
// vault.DefaultConfig for anything l leaves unset.
func (l LedgerConfig) VaultConfig() (vault.Config, error) {
	cfg := vault.DefaultConfig(l.Admin)
	if len(l.Executors) > 0 {
		cfg.Executors = append([]string(nil), l.Executors...)
	}
	if len(l.FeeCollectors) > 0 {
		cfg.FeeCollectors = nil
		for _, fc := range l.FeeCollectors {
			alloc, err := parseDec("fee_collectors.allocation", fc.Allocation)
			if err != nil {
				return vault.Config{}, err
			}
			cfg.FeeCollectors = append(cfg.FeeCollectors, vault.FeeCollector{Address: fc.Address, Allocation: alloc})
		}
	}

	decimals := []struct {
		name string
		src  string
		dst  *math.LegacyDec
	}{
		{"automation_fee_percent", l.AutomationFeePercent, &cfg.AutomationFeePercent},
		{"performance_fee_percent", l.PerformanceFeePercent, &cfg.PerformanceFeePercent},
		{"escrow_level", l.EscrowLevel, &cfg.EscrowLevel},
		{"default_slippage_tolerance", l.DefaultSlippageTolerance, &cfg.DefaultSlippageTolerance},
	}
	for _, d := range decimals {
		if d.src == "" {
			continue
		}
		v, err := parseDec(d.name, d.src)
		if err != nil {
			return vault.Config{}, err
		}
		*d.dst = v
	}

	if l.DefaultPageLimit > 0 {
		cfg.DefaultPageLimit = l.DefaultPageLimit
	}
	if l.MaxPageLimit > 0 {
		cfg.MaxPageLimit = l.MaxPageLimit
	}
	if l.TwapPeriod != "" {
		d, err := time.ParseDuration(l.TwapPeriod)
		if err != nil {
			return vault.Config{}, fmt.Errorf("twap_period: %w", err)
		}
		cfg.TwapPeriodSeconds = uint64(d / time.Second)
	}
	cfg.Paused = l.Paused
	cfg.ExchangeAddress = l.ExchangeAddress
	cfg.StakingDenom = l.StakingDenom

	if err := cfg.Validate(); err != nil {
		return vault.Config{}, err
	}
	return cfg, nil
}

// PricePair is one configured paper venue price.
type PricePair struct {
	Base  string
	Quote string
	Price math.LegacyDec
}

// PricePairs parses Prices, sorted by key.
func (v VenueConfig) PricePairs() ([]PricePair, error) {
	keys := make([]string, 0, len(v.Prices))
	for k := range v.Prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]PricePair, 0, len(keys))
	for _, k := range keys {
		base, quote, ok := strings.Cut(k, "/")
		if !ok || base == "" || quote == "" {
			return nil, fmt.Errorf("pair %q must be base/quote", k)
		}
		price, err := parseDec(k, v.Prices[k])
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("%s: price must be positive", k)
		}
		pairs = append(pairs, PricePair{Base: base, Quote: quote, Price: price})
	}
	return pairs, nil
}

// SpreadDec parses Spread, defaulting to zero.
func (v VenueConfig) SpreadDec() (math.LegacyDec, error) {
	if v.Spread == "" {
		return math.LegacyZeroDec(), nil
	}
	return parseDec("spread", v.Spread)
}

func parseDec(field, s string) (math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("%s: invalid decimal %q", field, s)
	}
	return d, nil
}
