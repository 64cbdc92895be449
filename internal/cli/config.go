package cli

import (
	"fmt"
	"strings"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// NewConfigCommand creates the config command group for the ledger config.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the ledger config",
	}

	cmd.AddCommand(newConfigGetCommand(opts))
	cmd.AddCommand(newConfigUpdateCommand(opts))

	return cmd
}

func newConfigGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get",
		Short:         "Show the ledger config",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, func(a *app) (any, error) {
				cfg, err := a.engine.Config(commandContext(cmd))
				if err != nil {
					return nil, err
				}
				return configView(cfg), nil
			})
		},
	}
}

type configView vault.Config

func (c configView) String() string {
	collectors := make([]string, len(c.FeeCollectors))
	for i, fc := range c.FeeCollectors {
		collectors[i] = fmt.Sprintf("%s:%s", fc.Address, fc.Allocation)
	}
	lines := []string{
		"admin: " + c.Admin,
		"executors: " + strings.Join(c.Executors, ","),
		"fee_collectors: " + strings.Join(collectors, ","),
		"automation_fee_percent: " + c.AutomationFeePercent.String(),
		"performance_fee_percent: " + c.PerformanceFeePercent.String(),
		fmt.Sprintf("default_page_limit: %d", c.DefaultPageLimit),
		fmt.Sprintf("max_page_limit: %d", c.MaxPageLimit),
		fmt.Sprintf("paused: %t", c.Paused),
		"escrow_level: " + c.EscrowLevel.String(),
		fmt.Sprintf("twap_period_seconds: %d", c.TwapPeriodSeconds),
		"default_slippage_tolerance: " + c.DefaultSlippageTolerance.String(),
		"exchange_address: " + c.ExchangeAddress,
	}
	if c.StakingDenom != "" {
		lines = append(lines, "staking_denom: "+c.StakingDenom)
	}
	return strings.Join(lines, "\n")
}

// ConfigUpdateOptions holds flags for config update. Only flags that are
// set change the config.
type ConfigUpdateOptions struct {
	*RootOptions
	Sender                   string
	Admin                    string
	Executors                []string
	FeeCollectors            []string
	AutomationFeePercent     string
	PerformanceFeePercent    string
	DefaultPageLimit         uint32
	MaxPageLimit             uint32
	Paused                   bool
	EscrowLevel              string
	TwapPeriodSeconds        uint64
	DefaultSlippageTolerance string
	ExchangeAddress          string
	StakingDenom             string
}

func newConfigUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigUpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the ledger config (admin only)",
		Long: `Change the ledger config. Only the flags given are changed.

Example:
  bounties config update --sender admin --paused=true
  bounties config update --sender admin --fee-collector treasury:0.7 --fee-collector ops:0.3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}
			return runRequest(opts.RootOptions, cmd, req)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Sender, "sender", "", "admin address")
	f.StringVar(&opts.Admin, "admin", "", "new admin")
	f.StringSliceVar(&opts.Executors, "executors", nil, "executor addresses")
	f.StringArrayVar(&opts.FeeCollectors, "fee-collector", nil, "fee collector address:allocation (repeatable)")
	f.StringVar(&opts.AutomationFeePercent, "automation-fee-percent", "", "fee taken from each swap")
	f.StringVar(&opts.PerformanceFeePercent, "performance-fee-percent", "", "share of outperformance taken from escrow")
	f.Uint32Var(&opts.DefaultPageLimit, "default-page-limit", 0, "default query page size")
	f.Uint32Var(&opts.MaxPageLimit, "max-page-limit", 0, "maximum query page size")
	f.BoolVar(&opts.Paused, "paused", false, "reject execution while paused")
	f.StringVar(&opts.EscrowLevel, "escrow-level", "", "share of proceeds escrowed for assessed vaults")
	f.Uint64Var(&opts.TwapPeriodSeconds, "twap-period-seconds", 0, "TWAP window for performance fees")
	f.StringVar(&opts.DefaultSlippageTolerance, "default-slippage-tolerance", "", "slippage tolerance for new vaults")
	f.StringVar(&opts.ExchangeAddress, "exchange-address", "", "exchange contract address")
	f.StringVar(&opts.StakingDenom, "staking-denom", "", "denom accepted by delegate destinations")

	return cmd
}

func (opts *ConfigUpdateOptions) request(cmd *cobra.Command) (engine.UpdateConfig, error) {
	if opts.Sender == "" {
		return engine.UpdateConfig{}, requiredFlag("sender")
	}
	req := engine.UpdateConfig{Sender: opts.Sender}
	changed := cmd.Flags().Changed

	if changed("admin") {
		req.Admin = &opts.Admin
	}
	if changed("executors") {
		req.Executors = &opts.Executors
	}
	if changed("fee-collector") {
		collectors, err := parseFeeCollectors(opts.FeeCollectors)
		if err != nil {
			return req, commandError(err)
		}
		req.FeeCollectors = &collectors
	}
	if changed("default-page-limit") {
		req.DefaultPageLimit = &opts.DefaultPageLimit
	}
	if changed("max-page-limit") {
		req.MaxPageLimit = &opts.MaxPageLimit
	}
	if changed("paused") {
		req.Paused = &opts.Paused
	}
	if changed("twap-period-seconds") {
		req.TwapPeriodSeconds = &opts.TwapPeriodSeconds
	}
	if changed("exchange-address") {
		req.ExchangeAddress = &opts.ExchangeAddress
	}
	if changed("staking-denom") {
		req.StakingDenom = &opts.StakingDenom
	}

	decs := []struct {
		flag  string
		value string
		dst   **math.LegacyDec
	}{
		{"automation-fee-percent", opts.AutomationFeePercent, &req.AutomationFeePercent},
		{"performance-fee-percent", opts.PerformanceFeePercent, &req.PerformanceFeePercent},
		{"escrow-level", opts.EscrowLevel, &req.EscrowLevel},
		{"default-slippage-tolerance", opts.DefaultSlippageTolerance, &req.DefaultSlippageTolerance},
	}
	for _, d := range decs {
		if !changed(d.flag) {
			continue
		}
		v, err := parseDecFlag(d.flag, d.value)
		if err != nil {
			return req, commandError(err)
		}
		*d.dst = v
	}
	return req, nil
}

func parseFeeCollectors(values []string) ([]vault.FeeCollector, error) {
	out := make([]vault.FeeCollector, 0, len(values))
	for _, s := range values {
		addr, alloc, ok := strings.Cut(s, ":")
		if !ok || addr == "" {
			return nil, fmt.Errorf("fee collector %q: want address:allocation", s)
		}
		d, err := math.LegacyNewDecFromStr(alloc)
		if err != nil {
			return nil, fmt.Errorf("fee collector %q: %w", s, err)
		}
		out = append(out, vault.FeeCollector{Address: addr, Allocation: d})
	}
	return out, nil
}
