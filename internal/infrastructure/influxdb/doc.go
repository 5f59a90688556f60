// Package influxdb provides time-series storage for mug telemetry.
//
// Temperature and battery samples captured during poll cycles are written
// through the non-blocking batch API, so a slow or absent InfluxDB server
// never stalls a device session. Async write errors are surfaced through
// an optional callback rather than returned to callers.
//
// The client is optional: when disabled in configuration, Connect returns
// ErrDisabled and the bridge runs without telemetry.
package influxdb
