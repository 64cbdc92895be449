package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/config"
	"github.com/PrismoFinance/bounties/internal/engine"
)

func baseScenario(steps []Step, assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "test",
		Description: "harness test",
		Ledger: config.LedgerConfig{
			Admin:                "admin",
			Executors:            []string{"keeper"},
			AutomationFeePercent: "0.01",
		},
		Venue:      config.VenueConfig{Prices: map[string]string{"uosmo/uusdc": "1"}},
		Steps:      steps,
		Assertions: append([]Assertion{{Type: AssertReplay}}, assertions...),
	}
}

func createStep() Step {
	return Step{CreateVault: &CreateVaultStep{
		Sender:      "owner",
		TargetDenom: "uusdc",
		SwapAmount:  "100",
		Funds:       []string{"1000uosmo"},
	}}
}

func TestRun_CreateAndExecute(t *testing.T) {
	scenario := baseScenario([]Step{
		createStep(),
		{ExecuteTrigger: &VaultStep{Sender: "keeper", Vault: 1}},
	}, Assertion{Type: AssertTransfers, Transfers: []string{"owner:99uusdc", "admin:1uusdc"}})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, "create_vault", result.Trace[0].Request)
	assert.Equal(t, uint64(1), result.Trace[0].VaultID, "vault id is taken from the response")
	assert.Equal(t, "100uusdc", result.Trace[1].Attributes["received"])

	calls := result.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, engine.MsgSwap, calls[0].Kind)
	assert.True(t, calls[0].Resumed)
	assert.Equal(t, engine.ReplyAfterSwap, calls[0].ReplyID)
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	scenario := baseScenario([]Step{
		createStep(),
		{CancelVault: &VaultStep{Sender: "mallory", Vault: 1}},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 2 (cancel_vault): expected ok, got UNAUTHORIZED")
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := baseScenario([]Step{
		{
			CreateVault: createStep().CreateVault,
			Expect: &Expect{
				Outcome:    OutcomeOK,
				Attributes: map[string]string{"status": "scheduled", "missing": "x"},
			},
		},
		{
			ExecuteTrigger: &VaultStep{Sender: "keeper", Vault: 9},
			Expect:         &Expect{Outcome: "PRECONDITION", Error: "elapsed"},
		},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		`step 1 (create_vault): attribute missing: missing, expected "x"`,
		`step 1 (create_vault): attribute status: expected "scheduled", got "active"`,
		"step 2 (execute_trigger): expected outcome PRECONDITION, got NOT_FOUND: " + result.Trace[1].Error,
		`step 2 (execute_trigger): expected error containing "elapsed", got "` + result.Trace[1].Error + `"`,
	}, result.Errors)
}

func TestRun_TickSubmitsDueWork(t *testing.T) {
	scenario := baseScenario([]Step{
		createStep(),
		{Tick: true},
		{Tick: true},
		{Advance: "24h"},
		{Tick: true},
	},
		Assertion{Type: AssertCalls, Step: 2, Kinds: []string{"swap", "send", "send"}},
		Assertion{Type: AssertCalls, Step: 3},
		Assertion{Type: AssertCalls, Step: 5, Kinds: []string{"swap", "send", "send"}},
		Assertion{Type: AssertVaultState, Vault: 1, Expect: map[string]string{"balance": "800uosmo"}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 3, "the second tick finds nothing due")
	for _, ev := range result.Trace[1:] {
		assert.Equal(t, "keeper", ev.Sender)
		assert.Equal(t, "execute_trigger", ev.Request)
	}
}

func TestRun_SetPriceAndFailure(t *testing.T) {
	// 100 uosmo at 2 uosmo per uusdc buys 50; the fee of 0.5 floors to 0.
	scenario := baseScenario([]Step{
		createStep(),
		{SetPrice: &SetPriceStep{Pair: "uosmo/uusdc", Price: "2"}},
		{FailNext: "send"},
		{ExecuteTrigger: &VaultStep{Sender: "keeper", Vault: 1}},
	},
		Assertion{Type: AssertTransfers},
		Assertion{Type: AssertVaultState, Vault: 1, Expect: map[string]string{"received_amount": "50uusdc"}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	calls := result.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "50uusdc", calls[0].Result.Received.String())
	assert.False(t, calls[1].Result.OK(), "the owner send was failed by the venue")
	assert.Equal(t, "injected send failure", calls[1].Result.Error)
}

func TestRun_InvalidLedger(t *testing.T) {
	scenario := baseScenario([]Step{createStep()})
	scenario.Ledger.AutomationFeePercent = "lots"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ledger config")
}

func TestRun_UnparsableRequest(t *testing.T) {
	step := createStep()
	step.CreateVault.SwapAmount = "ten"
	_, err := Run(baseScenario([]Step{step}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1: swap_amount")
}
