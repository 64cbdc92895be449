// Package harness provides conformance testing for the vault engine.
//
// The harness bootstraps a fresh ledger, submits scenario steps through the
// real dispatcher against the paper venue, and validates the resulting
// trace and final state as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	ledger:
//	  admin: admin
//	  executors: [keeper]
//	  automation_fee_percent: "0.01"
//	venue:
//	  prices:
//	    uosmo/uusdc: "1"
//	steps:
//	  - create_vault:
//	      sender: owner
//	      target_denom: uusdc
//	      swap_amount: "100"
//	      funds: [1000uosmo]
//	  - execute_trigger: { sender: keeper, vault: 1 }
//	  - execute_trigger: { sender: keeper, vault: 1 }
//	    expect:
//	      outcome: PRECONDITION
//	      error: "has not yet elapsed"
//	  - advance: 24h
//	  - tick: true
//	assertions:
//	  - type: transfers
//	    transfers: ["owner:99uusdc", "admin:1uusdc"]
//	  - type: vault_state
//	    vault: 1
//	    expect: { status: active, balance: 800uosmo }
//
// A request step without expect must be accepted. A tick step runs one
// keeper tick and submits everything it enqueued, signed by the executor.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - calls: Verifies the message kinds one step performed, in order
//   - transfers: Verifies every send the venue performed, as "to:amount"
//   - events: Verifies one vault's event kinds in height order
//   - vault_state: Verifies fields of one vault's final state
//   - trigger: Verifies one vault's trigger kind, or that it has none
//   - replay: Verifies every vault matches its event log
//
// # Deterministic Testing
//
// The harness uses:
//   - A fake clock starting at the scenario's start time
//   - Request ids fixed by scenario name
//   - In-memory SQLite database (isolated per test)
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/daily_vault.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
