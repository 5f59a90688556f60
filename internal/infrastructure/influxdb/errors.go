package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
var (
	// ErrDisabled indicates InfluxDB is disabled in configuration.
	ErrDisabled = errors.New("influxdb is disabled in configuration")

	// ErrNotConnected indicates an operation was attempted without a connection.
	ErrNotConnected = errors.New("influxdb client is not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb connection failed")
)
