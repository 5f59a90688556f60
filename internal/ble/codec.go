package ble

import (
	"encoding/binary"
	"fmt"
)

// Wire sizes for characteristic payloads.
const (
	tempPayloadLen    = 2
	batteryPayloadLen = 5
	ledPayloadLen     = 4
)

// Temperatures travel as uint16 little-endian in hundredths of a degree
// Celsius, regardless of the unit the mug is set to display.
const tempScale = 100.0

// LiquidState is the mug's reported heating phase.
type LiquidState byte

// Liquid states reported by the mug. Value 3 is unused by the firmware.
const (
	LiquidStateUnknown       LiquidState = 0
	LiquidStateEmpty         LiquidState = 1
	LiquidStateFilling       LiquidState = 2
	LiquidStateColdNoControl LiquidState = 4
	LiquidStateCooling       LiquidState = 5
	LiquidStateHeating       LiquidState = 6
	LiquidStateAtTarget      LiquidState = 7
	LiquidStateWarmNoControl LiquidState = 8
)

// String returns a human-readable name for logging and state payloads.
func (s LiquidState) String() string {
	switch s {
	case LiquidStateEmpty:
		return "empty"
	case LiquidStateFilling:
		return "filling"
	case LiquidStateColdNoControl:
		return "cold_no_control"
	case LiquidStateCooling:
		return "cooling"
	case LiquidStateHeating:
		return "heating"
	case LiquidStateAtTarget:
		return "at_target"
	case LiquidStateWarmNoControl:
		return "warm_no_control"
	default:
		return "unknown"
	}
}

// HasLiquid reports whether the mug contains liquid in this state.
func (s LiquidState) HasLiquid() bool {
	switch s {
	case LiquidStateEmpty, LiquidStateUnknown:
		return false
	default:
		return true
	}
}

// Battery is the decoded battery characteristic.
type Battery struct {
	Percent  float64
	Charging bool
}

// Color is the decoded LED characteristic. The firmware stores RGBA but
// ignores the alpha channel for display purposes.
type Color struct {
	R, G, B, A byte
}

// DecodeTemperature converts a temperature payload to degrees Celsius.
func DecodeTemperature(data []byte) (float64, error) {
	if len(data) < tempPayloadLen {
		return 0, fmt.Errorf("%w: temperature payload is %d bytes", ErrMalformedPayload, len(data))
	}
	raw := binary.LittleEndian.Uint16(data)
	return float64(raw) / tempScale, nil
}

// EncodeTemperature converts degrees Celsius to a temperature payload.
func EncodeTemperature(celsius float64) []byte {
	data := make([]byte, tempPayloadLen)
	binary.LittleEndian.PutUint16(data, uint16(celsius*tempScale))
	return data
}

// DecodeBattery converts a battery payload.
func DecodeBattery(data []byte) (Battery, error) {
	if len(data) < batteryPayloadLen {
		return Battery{}, fmt.Errorf("%w: battery payload is %d bytes", ErrMalformedPayload, len(data))
	}
	return Battery{
		Percent:  float64(data[0]),
		Charging: data[1] == 1,
	}, nil
}

// DecodeLiquidState converts a liquid state payload.
func DecodeLiquidState(data []byte) (LiquidState, error) {
	if len(data) < 1 {
		return LiquidStateUnknown, fmt.Errorf("%w: empty liquid state payload", ErrMalformedPayload)
	}
	return LiquidState(data[0]), nil
}

// DecodeLiquidLevel converts a liquid level payload. The mug reports a
// raw level of 0 to 30.
func DecodeLiquidLevel(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: empty liquid level payload", ErrMalformedPayload)
	}
	return int(data[0]), nil
}

// DecodeTemperatureUnit reports whether the mug displays Fahrenheit.
func DecodeTemperatureUnit(data []byte) (fahrenheit bool, err error) {
	if len(data) < 1 {
		return false, fmt.Errorf("%w: empty temperature unit payload", ErrMalformedPayload)
	}
	return data[0] == 1, nil
}

// DecodeLED converts an LED color payload.
func DecodeLED(data []byte) (Color, error) {
	if len(data) < ledPayloadLen {
		return Color{}, fmt.Errorf("%w: led payload is %d bytes", ErrMalformedPayload, len(data))
	}
	return Color{R: data[0], G: data[1], B: data[2], A: data[3]}, nil
}

// EncodeLED converts an LED color to its payload.
func EncodeLED(c Color) []byte {
	return []byte{c.R, c.G, c.B, c.A}
}
