// Package pairing turns mugs advertising pairing mode into paired devices.
//
// A mug broadcasting its service UUID becomes a transient candidate on
// the pending list, which is published over MQTT for dashboards. A
// claim (typically a button press forwarded by the home-automation
// platform) promotes the candidate: the ownership coordinator
// arbitrates first, and only a granted lease is persisted to the
// paired-device registry. Candidates that nobody claims are discarded
// after a timeout.
//
// Broadcasts from already-paired devices never re-enter the pending
// list; they are forwarded as liveness signals to the session layer.
package pairing
