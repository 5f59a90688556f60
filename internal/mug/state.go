package mug

import (
	"time"

	"github.com/hearthware/emberbridge/internal/ble"
)

// Safe target temperature range enforced before any write reaches the
// device. Values outside this window risk damaging the heating element
// or scalding the user, so the firmware range is mirrored here.
const (
	MinTargetC = 50.0
	MaxTargetC = 62.5

	MinTargetF = 120.0
	MaxTargetF = 145.0
)

// HeaterOffTarget is the target temperature that switches the heater
// off. The mug has no dedicated power switch; writing a zero target is
// how the official app turns heating off.
const HeaterOffTarget = 0.0

// State is a snapshot of everything the bridge mirrors for one mug.
type State struct {
	// CurrentTempC is the liquid temperature in Celsius.
	CurrentTempC float64

	// TargetTempC is the requested temperature in Celsius. Zero means
	// the heater is off.
	TargetTempC float64

	// Fahrenheit reports the unit the mug itself displays. Wire values
	// are always Celsius regardless of this flag.
	Fahrenheit bool

	// LiquidState is the heating phase reported by the mug.
	LiquidState ble.LiquidState

	// LiquidLevel is the raw fill level, 0 to 30.
	LiquidLevel int

	// Battery holds charge percentage and charging status.
	Battery ble.Battery

	// LED is the accent light color.
	LED ble.Color

	// UpdatedAt is when this snapshot was read from the device.
	UpdatedAt time.Time
}

// HeaterOn reports whether the mug is trying to hold a target.
func (s State) HeaterOn() bool {
	return s.TargetTempC > HeaterOffTarget
}

// LiquidPresent reports whether the mug contains liquid. Heating
// commands are refused for an empty mug.
func (s State) LiquidPresent() bool {
	return s.LiquidState.HasLiquid()
}

// InSafeRange reports whether a target temperature in Celsius falls
// within the writable window.
func InSafeRange(celsius float64) bool {
	return celsius >= MinTargetC && celsius <= MaxTargetC
}

// CToF converts Celsius to Fahrenheit for display payloads.
func CToF(c float64) float64 {
	return c*9/5 + 32
}

// FToC converts Fahrenheit to Celsius for inbound commands.
func FToC(f float64) float64 {
	return (f - 32) * 5 / 9
}
