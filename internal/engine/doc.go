// Package engine implements the vault engine: request handlers, the
// continuation protocol and the query surface over the ledger store.
//
// ARCHITECTURE:
//
// Single-Writer Requests:
// Handle and Resume are called from one goroutine (the dispatcher). Each
// runs in one store transaction. This ensures:
// - A request either commits all of its writes or none
// - Events get gap-free heights in commit order
// - No two requests interleave on the same vault
//
// Request Flow:
// 1. Handle(req) validates, mutates vaults and triggers, appends events
// 2. External calls are returned in the Response, never performed inline
// 3. A call that needs its result leaves a continuation entry behind
// 4. The dispatcher performs the calls in order after commit
// 5. Resume(reply) loads the entry, finishes the work, may return more calls
//
// Continuation ids:
// - after_swap: settle a swap or limit order withdrawal
// - after_post_execution_action: one destination follow-up finished
// - after_limit_order_placed: store the placed order's price trigger
// - fail_silently: result is ignored
//
// CRITICAL PATTERNS:
//
// CP-1: One Outstanding Execution
// A vault with a continuation entry rejects execute-trigger and
// disburse-escrow with a precondition error until the entry settles.
//
// CP-2: Logical Height
// Every request takes the next height from Clock. Heights order the event
// log; timestamps are informational.
//
// CP-3: Schedule From Target Time
// A fired time trigger is replaced by interval.Next(previous target time),
// so periods missed while a vault waited are executed in turn.
package engine
