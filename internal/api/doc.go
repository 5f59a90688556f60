// Package api implements the HTTP observability surface for the bridge.
//
// This package provides:
//   - A health endpoint aggregating broker, database, and session status
//   - A Prometheus metrics endpoint for scraping
//   - A read-only listing of paired devices and live sessions
//   - Middleware stack (request ID, logging, recovery)
//
// The bridge is headless; all control flows over MQTT. The HTTP listener
// exists so deployments can probe liveness and scrape metrics without
// touching the broker, and it is disabled entirely when api.enabled is
// false in the configuration.
package api
