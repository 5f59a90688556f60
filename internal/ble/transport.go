package ble

import "context"

// Characteristic identifies a readable or writable attribute on a mug.
type Characteristic int

// Characteristics exposed by the travel mug's GATT service.
const (
	CharTargetTemp Characteristic = iota
	CharCurrentTemp
	CharTemperatureUnit
	CharLiquidLevel
	CharBattery
	CharLiquidState
	CharLED
)

// String returns a human-readable name for logging.
func (c Characteristic) String() string {
	switch c {
	case CharTargetTemp:
		return "target_temp"
	case CharCurrentTemp:
		return "current_temp"
	case CharTemperatureUnit:
		return "temperature_unit"
	case CharLiquidLevel:
		return "liquid_level"
	case CharBattery:
		return "battery"
	case CharLiquidState:
		return "liquid_state"
	case CharLED:
		return "led"
	default:
		return "unknown"
	}
}

// Advertisement describes a mug seen during a scan.
type Advertisement struct {
	// Address is the Bluetooth MAC in canonical colon form.
	Address string

	// Name is the advertised local name, if present.
	Name string

	// RSSI is the received signal strength in dBm.
	RSSI int16

	// PairingMode reports whether the device is advertising its primary
	// service, which a mug only does while accepting new pairings.
	PairingMode bool
}

// ScanHandler receives advertisements as they arrive. Returning an error
// stops the scan.
type ScanHandler func(adv Advertisement) error

// Transport abstracts the Bluetooth adapter so sessions and tests can run
// against a fake radio.
type Transport interface {
	// Scan runs a discovery pass, invoking handler for each advertisement
	// until ctx is cancelled or the handler returns an error.
	Scan(ctx context.Context, handler ScanHandler) error

	// Connect establishes a connection to the device at addr and resolves
	// its GATT characteristics. The returned Peripheral is owned by the
	// caller and must be closed with Disconnect.
	Connect(ctx context.Context, addr string) (Peripheral, error)
}

// Peripheral is an open connection to a single mug.
type Peripheral interface {
	// Read fetches the current value of a characteristic.
	Read(ctx context.Context, char Characteristic) ([]byte, error)

	// Write sets the value of a characteristic.
	Write(ctx context.Context, char Characteristic, value []byte) error

	// Disconnect tears down the connection. Idempotent.
	Disconnect() error
}
