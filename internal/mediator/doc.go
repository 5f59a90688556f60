// Package mediator validates external control commands before they
// reach a mug.
//
// Every inbound command (temperature set, LED color, heater on/off) is
// checked against the mirrored device state at submission time: targets
// must fall within the safe range, and heating requires liquid in the
// mug. Accepted commands are forwarded exactly once; there is no
// implicit retry, a dropped link surfaces as an unreachable rejection
// and the caller resubmits. Acceptance applies an optimistic state
// update which the next poll cycle reconciles with device truth.
package mediator
