// Package vault holds the vault entity, its status machine and the rules
// that keep its fields consistent.
//
// Nothing here performs I/O. The engine loads a vault from the store,
// applies the functions in this package, and writes the result back in
// the same transaction.
//
// Status transitions:
//
//	Scheduled -> Active      start condition reached
//	Active    -> Inactive    balance < swap amount after an execution
//	Inactive  -> Active      deposit restores balance >= swap amount
//	any       -> Cancelled   owner or admin cancels (terminal)
package vault
