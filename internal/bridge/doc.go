// Package bridge orchestrates the whole device lifecycle.
//
// The Bridge ties the other components together: the ownership
// coordinator decides which devices this instance may touch, the scan
// loop feeds pairing candidates and adoption attempts, and one session
// goroutine per owned device drives the connection state machine
// (Idle, Connecting, Connected with alternating poll and apply,
// Disconnected with capped backoff). Inbound MQTT commands are parsed
// here and handed to the mediator; accepted commands publish the
// optimistic state immediately.
//
// Per-device operations are strictly sequential: a session polls, then
// applies, then publishes, and the device proxy serializes radio access
// so a concurrent command can never interleave with a poll. Session
// cleanup always retracts discovery and releases the lease, even on
// abnormal exit, so a crashed session never strands a retained claim.
package bridge
