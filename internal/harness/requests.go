package harness

import (
	"fmt"
	"sort"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// buildRequest converts a request step into the engine request it names.
// Parse failures are scenario errors, not request outcomes.
func buildRequest(st *Step) (engine.Request, error) {
	switch {
	case st.CreateVault != nil:
		return createRequest(st.CreateVault)
	case st.Deposit != nil:
		funds, err := parseCoins(st.Deposit.Funds)
		if err != nil {
			return nil, err
		}
		address := st.Deposit.Address
		if address == "" {
			address = st.Deposit.Sender
		}
		return engine.Deposit{Sender: st.Deposit.Sender, Address: address, VaultID: st.Deposit.Vault, Funds: funds}, nil
	case st.UpdateVault != nil:
		return updateRequest(st.UpdateVault)
	case st.CancelVault != nil:
		return engine.CancelVault{Sender: st.CancelVault.Sender, VaultID: st.CancelVault.Vault}, nil
	case st.ExecuteTrigger != nil:
		return engine.ExecuteTrigger{Sender: st.ExecuteTrigger.Sender, VaultID: st.ExecuteTrigger.Vault}, nil
	case st.DisburseEscrow != nil:
		return engine.DisburseEscrow{Sender: st.DisburseEscrow.Sender, VaultID: st.DisburseEscrow.Vault}, nil
	case st.UpdateConfig != nil:
		return configRequest(st.UpdateConfig)
	}
	return nil, fmt.Errorf("step has no request")
}

func createRequest(s *CreateVaultStep) (engine.CreateVault, error) {
	req := engine.CreateVault{
		Sender:                s.Sender,
		Owner:                 s.Owner,
		Label:                 s.Label,
		SourceDenom:           s.SourceDenom,
		TargetDenom:           s.TargetDenom,
		Route:                 s.Route,
		PerformanceAssessment: s.PerformanceAssessment,
	}

	var err error
	if req.Destinations, err = vault.ParseDestinations(s.Destinations); err != nil {
		return req, err
	}
	if req.Funds, err = parseCoins(s.Funds); err != nil {
		return req, err
	}
	swap, err := parseInt("swap_amount", s.SwapAmount)
	if err != nil {
		return req, err
	}
	req.SwapAmount = *swap

	interval := s.Interval
	if interval == "" {
		interval = string(trigger.Daily)
	}
	if req.Interval, err = trigger.ParseInterval(interval); err != nil {
		return req, err
	}
	if s.SlippageTolerance != "" {
		if req.SlippageTolerance, err = parseDec("slippage_tolerance", s.SlippageTolerance); err != nil {
			return req, err
		}
	}
	if s.MinimumReceiveAmount != "" {
		if req.MinimumReceiveAmount, err = parseInt("minimum_receive_amount", s.MinimumReceiveAmount); err != nil {
			return req, err
		}
	}
	if s.StartAfter != "" {
		t, err := time.Parse(time.RFC3339, s.StartAfter)
		if err != nil {
			return req, fmt.Errorf("start_after: %w", err)
		}
		req.TargetStartTime = &t
	}
	if s.TargetReceiveAmount != "" {
		if req.TargetReceiveAmount, err = parseInt("target_receive_amount", s.TargetReceiveAmount); err != nil {
			return req, err
		}
	}
	if s.SwapAdjustment != "" {
		if req.SwapAdjustment, err = vault.ParseSwapAdjustment(s.SwapAdjustment); err != nil {
			return req, err
		}
	}
	return req, nil
}

func updateRequest(s *UpdateVaultStep) (engine.UpdateVault, error) {
	req := engine.UpdateVault{Sender: s.Sender, VaultID: s.Vault, Label: s.Label}

	var err error
	if s.Destinations != nil {
		dests, err := vault.ParseDestinations(*s.Destinations)
		if err != nil {
			return req, err
		}
		req.Destinations = &dests
	}
	if s.SlippageTolerance != nil {
		if req.SlippageTolerance, err = parseDec("slippage_tolerance", *s.SlippageTolerance); err != nil {
			return req, err
		}
	}
	if s.MinimumReceiveAmount != nil {
		if req.MinimumReceiveAmount, err = parseInt("minimum_receive_amount", *s.MinimumReceiveAmount); err != nil {
			return req, err
		}
	}
	if s.Interval != nil {
		iv, err := trigger.ParseInterval(*s.Interval)
		if err != nil {
			return req, err
		}
		req.Interval = &iv
	}
	if s.SwapAmount != nil {
		if req.SwapAmount, err = parseInt("swap_amount", *s.SwapAmount); err != nil {
			return req, err
		}
	}
	if s.SwapAdjustment != nil {
		if req.SwapAdjustment, err = vault.ParseSwapAdjustment(*s.SwapAdjustment); err != nil {
			return req, err
		}
	}
	return req, nil
}

func configRequest(s *UpdateConfigStep) (engine.UpdateConfig, error) {
	req := engine.UpdateConfig{Sender: s.Sender, Executors: s.Executors, Paused: s.Paused}

	var err error
	if s.FeeCollectors != nil {
		collectors := make([]vault.FeeCollector, 0, len(*s.FeeCollectors))
		for _, fc := range *s.FeeCollectors {
			alloc, err := parseDec("fee_collectors.allocation", fc.Allocation)
			if err != nil {
				return req, err
			}
			collectors = append(collectors, vault.FeeCollector{Address: fc.Address, Allocation: *alloc})
		}
		req.FeeCollectors = &collectors
	}
	if s.AutomationFeePercent != nil {
		if req.AutomationFeePercent, err = parseDec("automation_fee_percent", *s.AutomationFeePercent); err != nil {
			return req, err
		}
	}
	if s.PerformanceFeePercent != nil {
		if req.PerformanceFeePercent, err = parseDec("performance_fee_percent", *s.PerformanceFeePercent); err != nil {
			return req, err
		}
	}
	if s.EscrowLevel != nil {
		if req.EscrowLevel, err = parseDec("escrow_level", *s.EscrowLevel); err != nil {
			return req, err
		}
	}
	return req, nil
}

func parseCoins(values []string) ([]coin.Coin, error) {
	out := make([]coin.Coin, 0, len(values))
	for _, s := range values {
		c, err := coin.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseDec(field, s string) (*math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &d, nil
}

func parseInt(field, s string) (*math.Int, error) {
	i, ok := math.NewIntFromString(s)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, s)
	}
	return &i, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
