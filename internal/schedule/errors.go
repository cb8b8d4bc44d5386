package schedule

import "errors"

// Validation errors are surfaced before any ledger query and are distinct
// from both empty results (ordinary control flow) and ledger failures
// (wrapped infrastructure errors).
var (
	ErrMalformedInstant = errors.New("malformed datetime")
	ErrEmptyInterval    = errors.New("interval end must be after start")
	ErrInvalidHorizon   = errors.New("horizon must be a positive number of days")
	ErrInvalidRange     = errors.New("date range end must not precede start")
)
