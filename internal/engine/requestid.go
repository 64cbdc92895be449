package engine

import "github.com/google/uuid"

// RequestIDGenerator issues correlation ids for inbound requests.
// Implemented by UUIDv7Generator (production) and testutil.FixedRequestIDs
// (tests).
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
//
// The id is logged with every request and stored on continuation entries,
// so a resume can be correlated with the request that issued its call.
//
// UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
