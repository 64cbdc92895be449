// Package coin provides the monetary primitives shared by the ledger.
//
// Amounts are unsigned integers in the smallest unit of a denom and are
// represented with cosmossdk.io/math.Int. Fractions (allocations, fee
// percentages, prices) use math.LegacyDec with 18 decimal places.
//
// All helpers truncate toward zero. Callers that split an amount into
// shares accept that the shares may sum to less than the whole.
package coin
