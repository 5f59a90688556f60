// Package mug models a single Ember travel mug as a typed device.
//
// Device sits between the raw Bluetooth transport and the rest of the
// bridge: it reads characteristic payloads into a State snapshot, and
// turns typed commands into the writes the firmware expects. The mug
// has no power switch, so heater-off is expressed as a zero target
// temperature, matching the official app.
//
// Target temperatures are validated against the firmware's safe range
// (50 to 62.5 Celsius) before any write is attempted.
package mug
