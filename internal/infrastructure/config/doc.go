// Package config loads and validates the Ember bridge configuration.
//
// Configuration is read from a YAML file, starting from hardcoded defaults,
// then overridden by environment variables (EMBERBRIDGE_*). Validation is
// collected rather than fail-fast so a misconfigured deployment reports
// every problem at once.
//
// The policy parameters that govern distributed ownership (lease TTL,
// conflict backoff) and per-device connection handling (poll interval,
// retry ceiling, backoff bounds) live here rather than as constants in the
// packages that consume them.
package config
