package ble

import (
	"errors"
	"testing"
)

func TestDecodeTemperature(t *testing.T) {
	// 5500 hundredths = 55.00 degrees Celsius, little-endian.
	got, err := DecodeTemperature([]byte{0x7c, 0x15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 55.0 {
		t.Errorf("expected 55.0, got %v", got)
	}
}

func TestDecodeTemperatureShortPayload(t *testing.T) {
	_, err := DecodeTemperature([]byte{0x7c})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestEncodeTemperatureRoundTrip(t *testing.T) {
	for _, want := range []float64{0, 50, 55.5, 62.5} {
		got, err := DecodeTemperature(EncodeTemperature(want))
		if err != nil {
			t.Fatalf("decode %v: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip: expected %v, got %v", want, got)
		}
	}
}

func TestDecodeBattery(t *testing.T) {
	b, err := DecodeBattery([]byte{80, 1, 0x10, 0x0e, 0x01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Percent != 80 {
		t.Errorf("expected 80 percent, got %v", b.Percent)
	}
	if !b.Charging {
		t.Error("expected charging to be true")
	}
}

func TestDecodeLiquidState(t *testing.T) {
	tests := []struct {
		raw       byte
		want      LiquidState
		hasLiquid bool
	}{
		{0, LiquidStateUnknown, false},
		{1, LiquidStateEmpty, false},
		{2, LiquidStateFilling, true},
		{4, LiquidStateColdNoControl, true},
		{5, LiquidStateCooling, true},
		{6, LiquidStateHeating, true},
		{7, LiquidStateAtTarget, true},
		{8, LiquidStateWarmNoControl, true},
	}

	for _, tt := range tests {
		got, err := DecodeLiquidState([]byte{tt.raw})
		if err != nil {
			t.Fatalf("decode %d: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("raw %d: expected %v, got %v", tt.raw, tt.want, got)
		}
		if got.HasLiquid() != tt.hasLiquid {
			t.Errorf("raw %d: expected HasLiquid=%v", tt.raw, tt.hasLiquid)
		}
	}
}

func TestDecodeLEDRoundTrip(t *testing.T) {
	want := Color{R: 0xff, G: 0x80, B: 0x00, A: 0xff}

	got, err := DecodeLED(EncodeLED(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeTemperatureUnit(t *testing.T) {
	fahrenheit, err := DecodeTemperatureUnit([]byte{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fahrenheit {
		t.Error("expected fahrenheit for unit byte 1")
	}

	fahrenheit, err = DecodeTemperatureUnit([]byte{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fahrenheit {
		t.Error("expected celsius for unit byte 0")
	}
}
