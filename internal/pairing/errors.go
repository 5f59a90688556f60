package pairing

import "errors"

// Sentinel errors for pairing operations.
var (
	// ErrUnknownCandidate indicates a claim for a device that is not on
	// the pending list (never seen, already claimed, or timed out).
	ErrUnknownCandidate = errors.New("unknown pairing candidate")
)
