package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration and resolves its duration strings.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	duration := func(field, s string, fallback time.Duration) time.Duration {
		if s == "" {
			return fallback
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)})
			return 0
		}
		if d <= 0 {
			errs = append(errs, ValidationError{Field: field, Message: "must be positive"})
			return 0
		}
		return d
	}

	cfg.Keeper.TickInterval = duration("keeper.tick_interval", cfg.Keeper.TickIntervalStr, DefaultTickInterval)
	cfg.Analytics.Window = duration("analytics.window", cfg.Analytics.WindowStr, DefaultWindow)
	cfg.Analytics.Retention = duration("analytics.retention", cfg.Analytics.RetentionStr, DefaultRetention)

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error, got %q", cfg.Log.Level),
		})
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("must be 'text' or 'json', got %q", cfg.Log.Format),
		})
	}

	// The ledger section only matters when bootstrapping a fresh store
	if cfg.Ledger.Admin != "" {
		if _, err := cfg.Ledger.VaultConfig(); err != nil {
			errs = append(errs, ValidationError{Field: "ledger", Message: err.Error()})
		}
	}
	if _, err := cfg.Venue.SpreadDec(); err != nil {
		errs = append(errs, ValidationError{Field: "venue.spread", Message: err.Error()})
	}
	if _, err := cfg.Venue.PricePairs(); err != nil {
		errs = append(errs, ValidationError{Field: "venue.prices", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
