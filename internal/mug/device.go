package mug

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hearthware/emberbridge/internal/ble"
)

// Device wraps an open connection to one mug and caches the last state
// snapshot read from it.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Radio operations are
//     serialized per device (a poll never overlaps an applied command),
//     and the snapshot is guarded separately so any goroutine can
//     inspect it without touching the radio.
type Device struct {
	addr string
	link ble.Peripheral

	// opMu serializes radio operations.
	opMu sync.Mutex

	mu    sync.RWMutex
	state State
}

// NewDevice wraps an established connection.
//
// Parameters:
//   - addr: Bluetooth MAC in canonical colon form
//   - link: Open peripheral connection, owned by the returned Device
func NewDevice(addr string, link ble.Peripheral) *Device {
	return &Device{addr: addr, link: link}
}

// Address returns the device's Bluetooth MAC.
func (d *Device) Address() string {
	return d.addr
}

// State returns the most recent snapshot. Zero value before the first
// successful Refresh.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Refresh reads every mirrored characteristic and replaces the cached
// snapshot. A failed read aborts the refresh and leaves the previous
// snapshot intact.
func (d *Device) Refresh(ctx context.Context) (State, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	var next State

	data, err := d.link.Read(ctx, ble.CharCurrentTemp)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.CurrentTempC, err = ble.DecodeTemperature(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	data, err = d.link.Read(ctx, ble.CharTargetTemp)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.TargetTempC, err = ble.DecodeTemperature(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	data, err = d.link.Read(ctx, ble.CharTemperatureUnit)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.Fahrenheit, err = ble.DecodeTemperatureUnit(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	data, err = d.link.Read(ctx, ble.CharLiquidState)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.LiquidState, err = ble.DecodeLiquidState(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	data, err = d.link.Read(ctx, ble.CharLiquidLevel)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.LiquidLevel, err = ble.DecodeLiquidLevel(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	data, err = d.link.Read(ctx, ble.CharBattery)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.Battery, err = ble.DecodeBattery(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	data, err = d.link.Read(ctx, ble.CharLED)
	if err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}
	if next.LED, err = ble.DecodeLED(data); err != nil {
		return State{}, fmt.Errorf("refresh %s: %w", d.addr, err)
	}

	next.UpdatedAt = time.Now()

	d.mu.Lock()
	d.state = next
	d.mu.Unlock()

	return next, nil
}

// SetTargetTemp writes a new target temperature and mirrors it into the
// cached snapshot. HeaterOffTarget is always accepted; any other value
// must be within the safe range.
func (d *Device) SetTargetTemp(ctx context.Context, celsius float64) error {
	if celsius != HeaterOffTarget && !InSafeRange(celsius) {
		return fmt.Errorf("%w: %.2f outside %.1f-%.1f", ErrTargetOutOfRange, celsius, MinTargetC, MaxTargetC)
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.link.Write(ctx, ble.CharTargetTemp, ble.EncodeTemperature(celsius)); err != nil {
		return fmt.Errorf("set target temp on %s: %w", d.addr, err)
	}

	d.mu.Lock()
	d.state.TargetTempC = celsius
	d.mu.Unlock()

	return nil
}

// SetHeater toggles heating. On restores the supplied target; off
// writes the zero target the firmware treats as heater-off.
func (d *Device) SetHeater(ctx context.Context, on bool, targetC float64) error {
	if !on {
		return d.SetTargetTemp(ctx, HeaterOffTarget)
	}
	return d.SetTargetTemp(ctx, targetC)
}

// SetLED writes a new accent light color and mirrors it into the cached
// snapshot.
func (d *Device) SetLED(ctx context.Context, color ble.Color) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.link.Write(ctx, ble.CharLED, ble.EncodeLED(color)); err != nil {
		return fmt.Errorf("set led on %s: %w", d.addr, err)
	}

	d.mu.Lock()
	d.state.LED = color
	d.mu.Unlock()

	return nil
}

// Close disconnects from the device.
func (d *Device) Close() error {
	return d.link.Disconnect()
}
