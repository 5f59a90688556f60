package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// GATT identifiers for the travel mug's primary service. All of the mug's
// characteristics live under one vendor service and share its UUID stem.
var (
	serviceUUID = mustUUID("fc543622-236c-4c94-8fa9-944a3e5353fa")

	charUUIDs = map[Characteristic]bluetooth.UUID{
		CharTargetTemp:      mustUUID("fc540003-236c-4c94-8fa9-944a3e5353fa"),
		CharCurrentTemp:     mustUUID("fc540002-236c-4c94-8fa9-944a3e5353fa"),
		CharTemperatureUnit: mustUUID("fc540004-236c-4c94-8fa9-944a3e5353fa"),
		CharLiquidLevel:     mustUUID("fc540005-236c-4c94-8fa9-944a3e5353fa"),
		CharBattery:         mustUUID("fc540007-236c-4c94-8fa9-944a3e5353fa"),
		CharLiquidState:     mustUUID("fc540008-236c-4c94-8fa9-944a3e5353fa"),
		CharLED:             mustUUID("fc540014-236c-4c94-8fa9-944a3e5353fa"),
	}
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("invalid uuid literal %q: %v", s, err))
	}
	return u
}

// readBufferSize is large enough for every mug characteristic payload.
const readBufferSize = 20

// Adapter implements Transport on the host's Bluetooth radio via the
// tinygo bluetooth stack (BlueZ on Linux).
//
// Thread Safety:
//   - Scan and Connect may be called from different goroutines, but only
//     one scan may run at a time (enforced by the underlying stack).
type Adapter struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error
}

// NewAdapter returns an Adapter backed by the default host radio. The
// radio is enabled lazily on first use.
func NewAdapter() *Adapter {
	return &Adapter{adapter: bluetooth.DefaultAdapter}
}

func (a *Adapter) enable() error {
	a.enableOnce.Do(func() {
		a.enableErr = a.adapter.Enable()
	})
	if a.enableErr != nil {
		return fmt.Errorf("%w: %w", ErrAdapterUnavailable, a.enableErr)
	}
	return nil
}

// Scan runs a discovery pass until ctx is cancelled or the handler
// returns an error. Only advertisements carrying the mug's primary
// service UUID are reported.
func (a *Adapter) Scan(ctx context.Context, handler ScanHandler) error {
	if err := a.enable(); err != nil {
		return err
	}

	var handlerErr error

	// The underlying Scan blocks until StopScan is called, so watch ctx
	// from a separate goroutine.
	stopCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	go func() {
		<-stopCtx.Done()
		_ = a.adapter.StopScan()
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.AdvertisementPayload.HasServiceUUID(serviceUUID) {
			return
		}

		adv := Advertisement{
			Address: strings.ToUpper(result.Address.String()),
			Name:    result.LocalName(),
			RSSI:    result.RSSI,
			// The mug only includes its service UUID in advertisements
			// while in pairing mode; steady-state beacons omit it.
			PairingMode: true,
		}

		if err := handler(adv); err != nil {
			handlerErr = err
			_ = adapter.StopScan()
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScanFailed, err)
	}
	if handlerErr != nil {
		return handlerErr
	}

	return ctx.Err()
}

// Connect establishes a connection to the mug at addr and resolves its
// characteristics. Respects ctx for the overall connect deadline.
func (a *Adapter) Connect(ctx context.Context, addr string) (Peripheral, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %q: %w", addr, err)
	}
	target := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	type connectResult struct {
		device bluetooth.Device
		err    error
	}

	// adapter.Connect has no context support, so run it in a goroutine
	// and abandon the attempt if the deadline passes first.
	resultCh := make(chan connectResult, 1)
	go func() {
		device, connErr := a.adapter.Connect(target, bluetooth.ConnectionParams{})
		resultCh <- connectResult{device: device, err: connErr}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.err == nil {
				_ = res.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, res.err)
		}

		p, err := newPeripheral(res.device)
		if err != nil {
			_ = res.device.Disconnect()
			return nil, err
		}
		return p, nil
	}
}

// peripheral is a connected mug with resolved characteristics.
type peripheral struct {
	device bluetooth.Device
	chars  map[Characteristic]bluetooth.DeviceCharacteristic

	disconnectOnce sync.Once
	disconnectErr  error
}

func newPeripheral(device bluetooth.Device) (*peripheral, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("%w: service discovery: %w", ErrUnreachable, err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: device does not expose the mug service", ErrNotSupported)
	}

	discovered, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: characteristic discovery: %w", ErrUnreachable, err)
	}

	chars := make(map[Characteristic]bluetooth.DeviceCharacteristic)
	for _, dc := range discovered {
		for id, uuid := range charUUIDs {
			if dc.UUID() == uuid {
				chars[id] = dc
			}
		}
	}

	// Reads and writes both need the temperature pair at minimum.
	for _, required := range []Characteristic{CharCurrentTemp, CharTargetTemp} {
		if _, ok := chars[required]; !ok {
			return nil, fmt.Errorf("%w: missing %s characteristic", ErrNotSupported, required)
		}
	}

	return &peripheral{device: device, chars: chars}, nil
}

func (p *peripheral) characteristic(char Characteristic) (bluetooth.DeviceCharacteristic, error) {
	dc, ok := p.chars[char]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: %s", ErrNotSupported, char)
	}
	return dc, nil
}

// Read fetches the current value of a characteristic.
func (p *peripheral) Read(ctx context.Context, char Characteristic) ([]byte, error) {
	dc, err := p.characteristic(char)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	buf := make([]byte, readBufferSize)
	n, err := dc.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnreachable, char, err)
	}
	return buf[:n], nil
}

// Write sets the value of a characteristic.
func (p *peripheral) Write(ctx context.Context, char Characteristic, value []byte) error {
	dc, err := p.characteristic(char)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	if _, err := dc.WriteWithoutResponse(value); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrUnreachable, char, err)
	}
	return nil
}

// Disconnect tears down the connection. Idempotent.
func (p *peripheral) Disconnect() error {
	p.disconnectOnce.Do(func() {
		p.disconnectErr = p.device.Disconnect()
	})
	return p.disconnectErr
}
