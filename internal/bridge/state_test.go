package bridge

import (
	"testing"
	"time"

	"github.com/hearthware/emberbridge/internal/ble"
	"github.com/hearthware/emberbridge/internal/mug"
)

func TestBuildStatePayloadHeating(t *testing.T) {
	state := mug.State{
		CurrentTempC: 54.5,
		TargetTempC:  55.0,
		LiquidState:  ble.LiquidStateHeating,
		Battery:      ble.Battery{Percent: 80, Charging: true},
		LED:          ble.Color{R: 255, G: 128, B: 0},
		UpdatedAt:    time.Now(),
	}

	p := buildStatePayload(state, true)

	if p.Power != "heat" {
		t.Errorf("expected heat mode, got %s", p.Power)
	}
	if p.CurrentTemperature != 54.5 || p.DesiredTemperature != 55.0 {
		t.Errorf("unexpected temperatures: %v / %v", p.CurrentTemperature, p.DesiredTemperature)
	}
	if p.Availability != "online" {
		t.Errorf("expected online, got %s", p.Availability)
	}
	if p.BatteryCharging != "ON" {
		t.Errorf("expected charging ON, got %s", p.BatteryCharging)
	}
	if p.LEDRGB != "255,128,0" {
		t.Errorf("unexpected led_rgb: %s", p.LEDRGB)
	}
	if p.LED != "ON" {
		t.Errorf("led must always report ON, got %s", p.LED)
	}
}

func TestBuildStatePayloadModes(t *testing.T) {
	tests := []struct {
		liquid ble.LiquidState
		want   string
	}{
		{ble.LiquidStateHeating, "heat"},
		{ble.LiquidStateAtTarget, "heat"},
		{ble.LiquidStateCooling, "heat"},
		{ble.LiquidStateEmpty, "off"},
		{ble.LiquidStateFilling, "off"},
		{ble.LiquidStateColdNoControl, "off"},
		{ble.LiquidStateWarmNoControl, "off"},
	}

	for _, tt := range tests {
		p := buildStatePayload(mug.State{LiquidState: tt.liquid}, true)
		if p.Power != tt.want {
			t.Errorf("%v: expected %s, got %s", tt.liquid, tt.want, p.Power)
		}
	}
}

func TestBuildStatePayloadFahrenheitDisplay(t *testing.T) {
	state := mug.State{
		CurrentTempC: 50.0,
		TargetTempC:  55.0,
		Fahrenheit:   true,
	}

	p := buildStatePayload(state, true)

	if p.CurrentTemperature != 122 {
		t.Errorf("expected 122F, got %v", p.CurrentTemperature)
	}
	if p.DesiredTemperature != 131 {
		t.Errorf("expected 131F, got %v", p.DesiredTemperature)
	}
}

func TestBuildStatePayloadOffline(t *testing.T) {
	p := buildStatePayload(mug.State{}, false)
	if p.Availability != "offline" {
		t.Errorf("expected offline, got %s", p.Availability)
	}
	if p.BatteryCharging != "OFF" {
		t.Errorf("expected charging OFF, got %s", p.BatteryCharging)
	}
}
