package bridge

import (
	"fmt"

	"github.com/hearthware/emberbridge/internal/ble"
	"github.com/hearthware/emberbridge/internal/mug"
)

// SessionState is a device session's position in its lifecycle.
type SessionState int

// Session lifecycle states. Sessions cycle indefinitely while the
// device is owned and return to Idle on ownership loss or retry
// exhaustion.
const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// String returns a human-readable name for logging.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// StatePayload is the retained per-device state document. The discovery
// descriptors reference its fields by template, so names here are part
// of the external contract.
type StatePayload struct {
	Power              string  `json:"power"`
	CurrentTemperature float64 `json:"current_temperature"`
	DesiredTemperature float64 `json:"desired_temperature"`
	Availability       string  `json:"availability"`
	BatteryPercent     float64 `json:"battery_percent"`
	BatteryCharging    string  `json:"battery_charging"`
	LED                string  `json:"led"`
	LEDRGB             string  `json:"led_rgb"`
}

// buildStatePayload renders a snapshot for publication. Temperatures
// are converted to the unit the mug displays; heating-family liquid
// states map to the "heat" climate mode, everything else to "off".
func buildStatePayload(state mug.State, online bool) StatePayload {
	mode := "off"
	switch state.LiquidState {
	case ble.LiquidStateHeating, ble.LiquidStateAtTarget, ble.LiquidStateCooling:
		mode = "heat"
	}

	availability := "offline"
	if online {
		availability = "online"
	}

	current, desired := state.CurrentTempC, state.TargetTempC
	if state.Fahrenheit {
		current = mug.CToF(current)
		desired = mug.CToF(desired)
	}

	charging := "OFF"
	if state.Battery.Charging {
		charging = "ON"
	}

	return StatePayload{
		Power:              mode,
		CurrentTemperature: current,
		DesiredTemperature: desired,
		Availability:       availability,
		BatteryPercent:     state.Battery.Percent,
		BatteryCharging:    charging,
		// The accent LED cannot be switched off; reporting it on keeps
		// the platform's light entity consistent.
		LED:    "ON",
		LEDRGB: fmt.Sprintf("%d,%d,%d", state.LED.R, state.LED.G, state.LED.B),
	}
}
