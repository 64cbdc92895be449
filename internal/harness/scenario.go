package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"cosmossdk.io/math"
	"gopkg.in/yaml.v3"

	"github.com/PrismoFinance/bounties/internal/config"
	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/venue"
)

// DefaultStart is the clock's starting time when a scenario sets none.
const DefaultStart = "2024-01-01T00:00:00Z"

// Scenario defines a conformance test scenario.
// A scenario bootstraps a fresh ledger, submits a list of steps through the
// dispatcher and asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC3339 time the fake clock starts at.
	// Defaults to DefaultStart.
	Start string `yaml:"start,omitempty"`

	// Ledger is the initial ledger config. Admin is required.
	Ledger config.LedgerConfig `yaml:"ledger"`

	// Venue seeds the paper venue prices and spread.
	Venue config.VenueConfig `yaml:"venue"`

	// Executor signs the requests a tick step enqueues.
	// Defaults to the first configured executor, then the admin.
	Executor string `yaml:"executor,omitempty"`

	// Steps run in order. Each names exactly one action.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	CreateVault    *CreateVaultStep  `yaml:"create_vault,omitempty"`
	Deposit        *DepositStep      `yaml:"deposit,omitempty"`
	UpdateVault    *UpdateVaultStep  `yaml:"update_vault,omitempty"`
	CancelVault    *VaultStep        `yaml:"cancel_vault,omitempty"`
	ExecuteTrigger *VaultStep        `yaml:"execute_trigger,omitempty"`
	DisburseEscrow *VaultStep        `yaml:"disburse_escrow,omitempty"`
	UpdateConfig   *UpdateConfigStep `yaml:"update_config,omitempty"`

	// Advance moves the clock forward by a Go duration ("24h").
	Advance string `yaml:"advance,omitempty"`

	// SetPrice changes a paper venue price.
	SetPrice *SetPriceStep `yaml:"set_price,omitempty"`

	// FailNext makes the next venue call of this op fail.
	FailNext string `yaml:"fail_next,omitempty"`

	// Tick runs one keeper tick and submits everything it enqueued.
	Tick bool `yaml:"tick,omitempty"`

	// Expect checks the outcome of a request step.
	// If nil, the request must be accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// CreateVaultStep mirrors engine.CreateVault with string fields, parsed
// the way the CLI parses its flags.
type CreateVaultStep struct {
	Sender                string   `yaml:"sender"`
	Owner                 string   `yaml:"owner,omitempty"`
	Label                 string   `yaml:"label,omitempty"`
	Destinations          []string `yaml:"destinations,omitempty"`
	SourceDenom           string   `yaml:"source_denom,omitempty"`
	TargetDenom           string   `yaml:"target_denom"`
	Route                 []string `yaml:"route,omitempty"`
	SlippageTolerance     string   `yaml:"slippage_tolerance,omitempty"`
	MinimumReceiveAmount  string   `yaml:"minimum_receive_amount,omitempty"`
	SwapAmount            string   `yaml:"swap_amount"`
	Interval              string   `yaml:"interval,omitempty"`
	StartAfter            string   `yaml:"start_after,omitempty"`
	TargetReceiveAmount   string   `yaml:"target_receive_amount,omitempty"`
	PerformanceAssessment bool     `yaml:"performance_assessment,omitempty"`
	SwapAdjustment        string   `yaml:"swap_adjustment,omitempty"`
	Funds                 []string `yaml:"funds,omitempty"`
}

// DepositStep adds funds. Address defaults to Sender.
type DepositStep struct {
	Sender  string   `yaml:"sender"`
	Address string   `yaml:"address,omitempty"`
	Vault   uint64   `yaml:"vault"`
	Funds   []string `yaml:"funds"`
}

// UpdateVaultStep changes the fields that are present.
type UpdateVaultStep struct {
	Sender               string    `yaml:"sender"`
	Vault                uint64    `yaml:"vault"`
	Label                *string   `yaml:"label,omitempty"`
	Destinations         *[]string `yaml:"destinations,omitempty"`
	SlippageTolerance    *string   `yaml:"slippage_tolerance,omitempty"`
	MinimumReceiveAmount *string   `yaml:"minimum_receive_amount,omitempty"`
	Interval             *string   `yaml:"interval,omitempty"`
	SwapAmount           *string   `yaml:"swap_amount,omitempty"`
	SwapAdjustment       *string   `yaml:"swap_adjustment,omitempty"`
}

// VaultStep is a request that only names a vault.
type VaultStep struct {
	Sender string `yaml:"sender"`
	Vault  uint64 `yaml:"vault"`
}

// UpdateConfigStep changes the ledger config fields that are present.
type UpdateConfigStep struct {
	Sender                string                       `yaml:"sender"`
	Executors             *[]string                    `yaml:"executors,omitempty"`
	FeeCollectors         *[]config.FeeCollectorConfig `yaml:"fee_collectors,omitempty"`
	AutomationFeePercent  *string                      `yaml:"automation_fee_percent,omitempty"`
	PerformanceFeePercent *string                      `yaml:"performance_fee_percent,omitempty"`
	Paused                *bool                        `yaml:"paused,omitempty"`
	EscrowLevel           *string                      `yaml:"escrow_level,omitempty"`
}

// SetPriceStep sets the price of Pair ("base/quote") in base units.
type SetPriceStep struct {
	Pair  string `yaml:"pair"`
	Price string `yaml:"price"`
}

// Expect specifies the expected outcome of a request step.
type Expect struct {
	// Outcome is "ok" or an engine error code (e.g. "PRECONDITION").
	Outcome string `yaml:"outcome"`

	// Error is a substring of the rejection message.
	Error string `yaml:"error,omitempty"`

	// Attributes is a subset match on the merged response attributes.
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Assertion validates the final trace or state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "calls": message kinds performed by one step, in order
	// - "transfers": every send the venue performed, as "to:amount"
	// - "events": event kinds of one vault, in height order
	// - "vault_state": fields of one vault's final state
	// - "trigger": kind of one vault's trigger, or "none"
	// - "replay": every vault matches its event log
	Type string `yaml:"type"`

	// Step is the 1-based step index (used by calls).
	Step int `yaml:"step,omitempty"`

	// Kinds is the expected kind list (used by calls, events).
	Kinds []string `yaml:"kinds,omitempty"`

	// Vault is the vault id (used by events, vault_state, trigger).
	Vault uint64 `yaml:"vault,omitempty"`

	// Transfers is the exact expected send list (used by transfers).
	Transfers []string `yaml:"transfers,omitempty"`

	// Expect contains expected field values (used by vault_state).
	// Subset match - only specified fields are validated.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Trigger is "none", "time" or "price" (used by trigger).
	Trigger string `yaml:"trigger,omitempty"`
}

// Assertion type constants.
const (
	AssertCalls      = "calls"
	AssertTransfers  = "transfers"
	AssertEvents     = "events"
	AssertVaultState = "vault_state"
	AssertTrigger    = "trigger"
	AssertReplay     = "replay"
)

var errorCodes = map[string]bool{
	string(engine.ErrCodeValidation):   true,
	string(engine.ErrCodeUnauthorized): true,
	string(engine.ErrCodePrecondition): true,
	string(engine.ErrCodeNotFound):     true,
	string(engine.ErrCodeFatal):        true,
}

var venueOps = map[venue.Op]bool{
	venue.OpQuote:           true,
	venue.OpTWAP:            true,
	venue.OpSwap:            true,
	venue.OpPlaceLimitOrder: true,
	venue.OpRetractOrder:    true,
	venue.OpWithdrawOrder:   true,
	venue.OpSend:            true,
	venue.OpDelegate:        true,
	venue.OpInvoke:          true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// startTime parses Start, defaulting to DefaultStart.
func (s *Scenario) startTime() (time.Time, error) {
	start := s.Start
	if start == "" {
		start = DefaultStart
	}
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, fmt.Errorf("start: %w", err)
	}
	return t.UTC(), nil
}

func (s *Scenario) executor() string {
	if s.Executor != "" {
		return s.Executor
	}
	if len(s.Ledger.Executors) > 0 {
		return s.Ledger.Executors[0]
	}
	return s.Ledger.Admin
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Ledger.Admin == "" {
		return fmt.Errorf("ledger.admin is required")
	}
	if _, err := s.startTime(); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

// actions lists the names of the action fields set on st.
func (st *Step) actions() []string {
	var names []string
	set := func(ok bool, name string) {
		if ok {
			names = append(names, name)
		}
	}
	set(st.CreateVault != nil, "create_vault")
	set(st.Deposit != nil, "deposit")
	set(st.UpdateVault != nil, "update_vault")
	set(st.CancelVault != nil, "cancel_vault")
	set(st.ExecuteTrigger != nil, "execute_trigger")
	set(st.DisburseEscrow != nil, "disburse_escrow")
	set(st.UpdateConfig != nil, "update_config")
	set(st.Advance != "", "advance")
	set(st.SetPrice != nil, "set_price")
	set(st.FailNext != "", "fail_next")
	set(st.Tick, "tick")
	return names
}

// isRequest reports whether st submits exactly one engine request.
func (st *Step) isRequest() bool {
	switch st.actions()[0] {
	case "advance", "set_price", "fail_next", "tick":
		return false
	}
	return true
}

func validateStep(index int, st *Step) error {
	names := st.actions()
	switch len(names) {
	case 0:
		return fmt.Errorf("steps[%d]: an action is required", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: exactly one action allowed, got %s", index, strings.Join(names, ", "))
	}

	if st.Expect != nil {
		if !st.isRequest() {
			return fmt.Errorf("steps[%d]: expect is not allowed on %s", index, names[0])
		}
		if st.Expect.Outcome != OutcomeOK && !errorCodes[st.Expect.Outcome] {
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", index, st.Expect.Outcome)
		}
	}

	switch {
	case st.CreateVault != nil:
		if st.CreateVault.Sender == "" {
			return fmt.Errorf("steps[%d]: sender is required for create_vault", index)
		}
		if st.CreateVault.SwapAmount == "" {
			return fmt.Errorf("steps[%d]: swap_amount is required for create_vault", index)
		}
	case st.Deposit != nil:
		if err := requireVault(index, "deposit", st.Deposit.Sender, st.Deposit.Vault); err != nil {
			return err
		}
	case st.UpdateVault != nil:
		if err := requireVault(index, "update_vault", st.UpdateVault.Sender, st.UpdateVault.Vault); err != nil {
			return err
		}
	case st.CancelVault != nil:
		return requireVault(index, "cancel_vault", st.CancelVault.Sender, st.CancelVault.Vault)
	case st.ExecuteTrigger != nil:
		return requireVault(index, "execute_trigger", st.ExecuteTrigger.Sender, st.ExecuteTrigger.Vault)
	case st.DisburseEscrow != nil:
		return requireVault(index, "disburse_escrow", st.DisburseEscrow.Sender, st.DisburseEscrow.Vault)
	case st.UpdateConfig != nil:
		if st.UpdateConfig.Sender == "" {
			return fmt.Errorf("steps[%d]: sender is required for update_config", index)
		}
	case st.Advance != "":
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
	case st.SetPrice != nil:
		if _, _, err := parsePair(st.SetPrice); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case st.FailNext != "":
		if !venueOps[venue.Op(st.FailNext)] {
			return fmt.Errorf("steps[%d]: unknown venue op %q", index, st.FailNext)
		}
	}
	return nil
}

func requireVault(index int, action, sender string, id uint64) error {
	if sender == "" {
		return fmt.Errorf("steps[%d]: sender is required for %s", index, action)
	}
	if id == 0 {
		return fmt.Errorf("steps[%d]: vault is required for %s", index, action)
	}
	return nil
}

// parsePair splits "base/quote" and parses a positive price.
func parsePair(sp *SetPriceStep) (string, string, error) {
	base, quote, ok := strings.Cut(sp.Pair, "/")
	if !ok || base == "" || quote == "" {
		return "", "", fmt.Errorf("set_price: pair %q must be base/quote", sp.Pair)
	}
	price, err := math.LegacyNewDecFromStr(sp.Price)
	if err != nil || !price.IsPositive() {
		return "", "", fmt.Errorf("set_price: price %q must be a positive decimal", sp.Price)
	}
	return base, quote, nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCalls:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step must be between 1 and %d for calls", index, steps)
		}
	case AssertTransfers, AssertReplay:
	case AssertEvents:
		if a.Vault == 0 {
			return fmt.Errorf("assertions[%d]: vault is required for events", index)
		}
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for events", index)
		}
	case AssertVaultState:
		if a.Vault == 0 {
			return fmt.Errorf("assertions[%d]: vault is required for vault_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for vault_state", index)
		}
		for field := range a.Expect {
			if _, ok := vaultFields[field]; !ok {
				return fmt.Errorf("assertions[%d]: unknown vault field %q", index, field)
			}
		}
	case AssertTrigger:
		if a.Vault == 0 {
			return fmt.Errorf("assertions[%d]: vault is required for trigger", index)
		}
		switch a.Trigger {
		case "none", "time", "price":
		default:
			return fmt.Errorf("assertions[%d]: trigger must be none, time or price", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
