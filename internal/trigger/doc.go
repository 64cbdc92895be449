// Package trigger defines the condition that makes a vault's next execution
// due.
//
// A vault owns at most one trigger. Time triggers fire once the wall clock
// reaches their target time and are replaced after every fire by a trigger
// whose target is the interval applied to the previous target, not to the
// firing time. Price triggers stand for a limit order resting at the venue
// and are replaced by a Time trigger once the order fills.
package trigger
