// Package ble provides Bluetooth Low Energy access to Ember travel mugs.
//
// The package splits into three layers:
//
//   - Transport and Peripheral interfaces, so device sessions and tests
//     can run against a fake radio.
//   - A wire codec for the mug's GATT characteristics (temperatures as
//     little-endian hundredths of a degree Celsius, RGBA LED color,
//     battery and liquid state bytes).
//   - Adapter, the production Transport backed by tinygo.org/x/bluetooth
//     on the host radio.
//
// Mugs advertise their primary service UUID only while in pairing mode,
// so every advertisement the scanner reports is a pairing candidate.
package ble
