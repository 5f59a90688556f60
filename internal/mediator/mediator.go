package mediator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hearthware/emberbridge/internal/ble"
	"github.com/hearthware/emberbridge/internal/mug"
)

// Logger is the minimal logging interface needed by the mediator.
// Satisfied by *logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Controllable is the device surface commands are applied to.
// Satisfied by *mug.Device.
type Controllable interface {
	State() mug.State
	SetTargetTemp(ctx context.Context, celsius float64) error
	SetHeater(ctx context.Context, on bool, targetC float64) error
	SetLED(ctx context.Context, color ble.Color) error
}

// DeviceSource resolves a device identifier to its live connection.
// Satisfied by the bridge's session registry.
type DeviceSource interface {
	Device(deviceID string) (Controllable, bool)
}

// Kind discriminates command requests.
type Kind int

// Command kinds accepted by Submit.
const (
	SetTemperature Kind = iota
	SetColor
	SetHeater
)

// String returns a human-readable name for logging.
func (k Kind) String() string {
	switch k {
	case SetTemperature:
		return "set_temperature"
	case SetColor:
		return "set_color"
	case SetHeater:
		return "set_heater"
	default:
		return "unknown"
	}
}

// Request is one external control command. Created on receipt, applied
// or rejected within a single Submit call, never persisted.
type Request struct {
	DeviceID string
	Kind     Kind

	// TemperatureC carries the target for SetTemperature, in Celsius.
	TemperatureC float64

	// Color carries the LED color for SetColor.
	Color ble.Color

	// HeaterOn carries the desired heater state for SetHeater.
	HeaterOn bool

	// Requester identifies the origin (topic, API client) for logging.
	Requester string
}

// defaultHeatTarget is written when the heater is switched on and no
// previous in-range target is known. The mug heats on its own with hot
// liquid; this just gives it a sensible setpoint to hold.
const defaultHeatTarget = 55.0

// Mediator validates control commands against the mirrored device state
// and forwards safe ones to the device, exactly once per submission.
//
// Accepted commands apply an optimistic local update (inside the device
// proxy) so observers see the new target before the next poll confirms
// it. Rejected commands are surfaced to the caller and never retried
// automatically.
//
// Thread Safety:
//   - All methods are safe for concurrent use; per-device serialization
//     is the session loop's responsibility.
type Mediator struct {
	devices      DeviceSource
	pollInterval time.Duration
	logger       Logger

	now func() time.Time
}

// NewMediator creates a mediator.
//
// Parameters:
//   - devices: Registry resolving device IDs to live connections
//   - pollInterval: Freshness bound for safety-interlock decisions
//   - logger: Logger for command outcomes
func NewMediator(devices DeviceSource, pollInterval time.Duration, logger Logger) *Mediator {
	return &Mediator{
		devices:      devices,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// Submit validates and applies one command.
//
// Returns:
//   - nil: Command accepted and forwarded to the device
//   - *Rejection: Command refused; Reason carries the cause
func (m *Mediator) Submit(ctx context.Context, req Request) error {
	dev, ok := m.devices.Device(req.DeviceID)
	if !ok {
		return m.reject(req, ReasonUnreachable, errors.New("device not connected to this instance"))
	}

	var err error
	switch req.Kind {
	case SetTemperature:
		err = m.applyTemperature(ctx, dev, req)
	case SetHeater:
		err = m.applyHeater(ctx, dev, req)
	case SetColor:
		err = m.applyColor(ctx, dev, req)
	default:
		return m.reject(req, ReasonUnsupported, fmt.Errorf("unknown command kind %d", req.Kind))
	}
	if err != nil {
		return err
	}

	m.logger.Info("command accepted",
		"device", req.DeviceID, "kind", req.Kind.String(), "requester", req.Requester)
	return nil
}

func (m *Mediator) applyTemperature(ctx context.Context, dev Controllable, req Request) error {
	if !mug.InSafeRange(req.TemperatureC) {
		return m.reject(req, ReasonOutOfRange,
			fmt.Errorf("%.2f outside %.1f-%.1f", req.TemperatureC, mug.MinTargetC, mug.MaxTargetC))
	}

	if err := dev.SetTargetTemp(ctx, req.TemperatureC); err != nil {
		return m.reject(req, ReasonUnreachable, err)
	}
	return nil
}

func (m *Mediator) applyHeater(ctx context.Context, dev Controllable, req Request) error {
	state := dev.State()

	if req.HeaterOn {
		// Hardware interlock: heating an empty mug is refused by the
		// firmware, so surface the rejection instead of writing a
		// command that silently does nothing. The interlock must never
		// be decided on a mirror older than one poll interval.
		if m.stale(state) {
			return m.reject(req, ReasonBusy, errors.New("mirrored state is stale, await next poll"))
		}
		if !state.LiquidPresent() {
			return m.reject(req, ReasonLiquidRequired, errors.New("mug is empty"))
		}
	}

	target := state.TargetTempC
	if !mug.InSafeRange(target) {
		target = defaultHeatTarget
	}

	if err := dev.SetHeater(ctx, req.HeaterOn, target); err != nil {
		return m.reject(req, ReasonUnreachable, err)
	}
	return nil
}

func (m *Mediator) applyColor(ctx context.Context, dev Controllable, req Request) error {
	if err := dev.SetLED(ctx, req.Color); err != nil {
		return m.reject(req, ReasonUnreachable, err)
	}
	return nil
}

// stale reports whether a snapshot is older than one poll interval.
func (m *Mediator) stale(state mug.State) bool {
	if state.UpdatedAt.IsZero() {
		return true
	}
	return m.now().Sub(state.UpdatedAt) > m.pollInterval
}

func (m *Mediator) reject(req Request, reason Reason, cause error) error {
	m.logger.Warn("command rejected",
		"device", req.DeviceID, "kind", req.Kind.String(),
		"reason", string(reason), "cause", cause)
	return &Rejection{Reason: reason, Cause: cause}
}
