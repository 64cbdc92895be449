// Package event defines the append-only audit records of the ledger.
//
// Every inbound request that changes a vault appends at least one event.
// Events are never updated or deleted; the store refuses both. They are
// the only record external observers get of what happened to a vault,
// and replay folds them back into running totals.
package event
