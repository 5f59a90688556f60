package ble

import "errors"

// Sentinel errors for Bluetooth operations.
var (
	// ErrAdapterUnavailable indicates the host radio could not be enabled.
	ErrAdapterUnavailable = errors.New("bluetooth adapter unavailable")

	// ErrScanFailed indicates a discovery pass could not be started.
	ErrScanFailed = errors.New("bluetooth scan failed")

	// ErrUnreachable indicates the device did not respond to a connect,
	// read, or write.
	ErrUnreachable = errors.New("device unreachable")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("bluetooth operation timed out")

	// ErrNotSupported indicates the device lacks an expected characteristic.
	ErrNotSupported = errors.New("characteristic not supported by device")

	// ErrMalformedPayload indicates a characteristic value could not be decoded.
	ErrMalformedPayload = errors.New("malformed characteristic payload")
)
