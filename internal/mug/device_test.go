package mug

import (
	"context"
	"errors"
	"testing"

	"github.com/hearthware/emberbridge/internal/ble"
)

// fakeLink is an in-memory Peripheral with canned characteristic values.
type fakeLink struct {
	values  map[ble.Characteristic][]byte
	writes  []fakeWrite
	readErr error
	closed  bool
}

type fakeWrite struct {
	char  ble.Characteristic
	value []byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		values: map[ble.Characteristic][]byte{
			ble.CharCurrentTemp:     ble.EncodeTemperature(54.5),
			ble.CharTargetTemp:      ble.EncodeTemperature(55.0),
			ble.CharTemperatureUnit: {0},
			ble.CharLiquidState:     {byte(ble.LiquidStateHeating)},
			ble.CharLiquidLevel:     {20},
			ble.CharBattery:         {80, 1, 0, 0, 0},
			ble.CharLED:             {0xff, 0x00, 0x00, 0xff},
		},
	}
}

func (f *fakeLink) Read(_ context.Context, char ble.Characteristic) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	v, ok := f.values[char]
	if !ok {
		return nil, ble.ErrNotSupported
	}
	return v, nil
}

func (f *fakeLink) Write(_ context.Context, char ble.Characteristic, value []byte) error {
	f.writes = append(f.writes, fakeWrite{char: char, value: value})
	f.values[char] = value
	return nil
}

func (f *fakeLink) Disconnect() error {
	f.closed = true
	return nil
}

func TestRefresh(t *testing.T) {
	d := NewDevice("AA:BB:CC:DD:EE:FF", newFakeLink())

	state, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.CurrentTempC != 54.5 {
		t.Errorf("expected current temp 54.5, got %v", state.CurrentTempC)
	}
	if state.TargetTempC != 55.0 {
		t.Errorf("expected target temp 55.0, got %v", state.TargetTempC)
	}
	if !state.HeaterOn() {
		t.Error("expected heater on with non-zero target")
	}
	if !state.LiquidPresent() {
		t.Error("expected liquid present in heating state")
	}
	if state.Battery.Percent != 80 || !state.Battery.Charging {
		t.Errorf("unexpected battery: %+v", state.Battery)
	}
	if state.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}

	// The cached snapshot must match the returned one.
	if got := d.State(); got != state {
		t.Errorf("cached state mismatch: %+v vs %+v", got, state)
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	link := newFakeLink()
	d := NewDevice("AA:BB:CC:DD:EE:FF", link)

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := d.State()

	link.readErr = ble.ErrUnreachable
	if _, err := d.Refresh(context.Background()); !errors.Is(err, ble.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}

	if got := d.State(); got != before {
		t.Error("failed refresh must not modify the cached snapshot")
	}
}

func TestSetTargetTemp(t *testing.T) {
	link := newFakeLink()
	d := NewDevice("AA:BB:CC:DD:EE:FF", link)

	if err := d.SetTargetTemp(context.Background(), 56.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(link.writes) != 1 || link.writes[0].char != ble.CharTargetTemp {
		t.Fatalf("expected one target temp write, got %+v", link.writes)
	}
	if got := d.State().TargetTempC; got != 56.5 {
		t.Errorf("expected optimistic snapshot update to 56.5, got %v", got)
	}
}

func TestSetTargetTempOutOfRange(t *testing.T) {
	link := newFakeLink()
	d := NewDevice("AA:BB:CC:DD:EE:FF", link)

	for _, celsius := range []float64{49.9, 62.6, 100} {
		err := d.SetTargetTemp(context.Background(), celsius)
		if !errors.Is(err, ErrTargetOutOfRange) {
			t.Errorf("%v: expected ErrTargetOutOfRange, got %v", celsius, err)
		}
	}
	if len(link.writes) != 0 {
		t.Errorf("out of range targets must not reach the device, got %+v", link.writes)
	}
}

func TestSetHeater(t *testing.T) {
	link := newFakeLink()
	d := NewDevice("AA:BB:CC:DD:EE:FF", link)

	if err := d.SetHeater(context.Background(), false, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.State().TargetTempC; got != HeaterOffTarget {
		t.Errorf("expected heater-off target, got %v", got)
	}

	if err := d.SetHeater(context.Background(), true, 55.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.State().TargetTempC; got != 55.0 {
		t.Errorf("expected restored target 55.0, got %v", got)
	}
}

func TestInSafeRange(t *testing.T) {
	tests := []struct {
		celsius float64
		want    bool
	}{
		{50.0, true},
		{62.5, true},
		{55.0, true},
		{49.99, false},
		{62.51, false},
		{0, false},
	}

	for _, tt := range tests {
		if got := InSafeRange(tt.celsius); got != tt.want {
			t.Errorf("InSafeRange(%v) = %v, want %v", tt.celsius, got, tt.want)
		}
	}
}

func TestTemperatureConversion(t *testing.T) {
	if got := CToF(50); got != 122 {
		t.Errorf("CToF(50) = %v, want 122", got)
	}
	if got := FToC(122); got != 50 {
		t.Errorf("FToC(122) = %v, want 50", got)
	}
}
