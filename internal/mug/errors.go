package mug

import "errors"

// Sentinel errors for mug operations.
var (
	// ErrTargetOutOfRange indicates a requested target temperature falls
	// outside the safe writable window.
	ErrTargetOutOfRange = errors.New("target temperature out of range")
)
