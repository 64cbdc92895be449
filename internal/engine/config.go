package engine

import (
	"strconv"

	"github.com/PrismoFinance/bounties/internal/vault"
)

func (e *Engine) updateConfig(s *session, req UpdateConfig, resp *Response) error {
	if !s.cfg.IsAdmin(req.Sender) {
		return NewUnauthorizedError()
	}

	cfg := s.cfg
	if req.Admin != nil {
		cfg.Admin = *req.Admin
	}
	if req.Executors != nil {
		cfg.Executors = append([]string(nil), (*req.Executors)...)
	}
	if req.FeeCollectors != nil {
		cfg.FeeCollectors = append([]vault.FeeCollector(nil), (*req.FeeCollectors)...)
	}
	if req.AutomationFeePercent != nil {
		cfg.AutomationFeePercent = *req.AutomationFeePercent
	}
	if req.PerformanceFeePercent != nil {
		cfg.PerformanceFeePercent = *req.PerformanceFeePercent
	}
	if req.DefaultPageLimit != nil {
		cfg.DefaultPageLimit = *req.DefaultPageLimit
	}
	if req.MaxPageLimit != nil {
		cfg.MaxPageLimit = *req.MaxPageLimit
	}
	if req.Paused != nil {
		cfg.Paused = *req.Paused
	}
	if req.EscrowLevel != nil {
		cfg.EscrowLevel = *req.EscrowLevel
	}
	if req.TwapPeriodSeconds != nil {
		cfg.TwapPeriodSeconds = *req.TwapPeriodSeconds
	}
	if req.DefaultSlippageTolerance != nil {
		cfg.DefaultSlippageTolerance = *req.DefaultSlippageTolerance
	}
	if req.ExchangeAddress != nil {
		cfg.ExchangeAddress = *req.ExchangeAddress
	}
	if req.StakingDenom != nil {
		cfg.StakingDenom = *req.StakingDenom
	}

	if err := cfg.Validate(); err != nil {
		return validationFrom(err)
	}
	if err := s.tx.SaveConfig(s.ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("ledger config updated", "admin", cfg.Admin, "paused", cfg.Paused)
	resp.attr("paused", strconv.FormatBool(cfg.Paused))
	return nil
}

