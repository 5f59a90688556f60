package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hearthware/emberbridge/internal/ble"
	"github.com/hearthware/emberbridge/internal/discovery"
	"github.com/hearthware/emberbridge/internal/infrastructure/config"
	"github.com/hearthware/emberbridge/internal/infrastructure/database"
	"github.com/hearthware/emberbridge/internal/infrastructure/influxdb"
	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
	"github.com/hearthware/emberbridge/internal/mediator"
	"github.com/hearthware/emberbridge/internal/mug"
	"github.com/hearthware/emberbridge/internal/ownership"
)

// Logger is the minimal logging interface needed by the bridge.
// Satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bus is the subset of the MQTT client used by the bridge and its
// sessions. Narrowed for testability.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	ClearRetained(topic string) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Coordinator arbitrates device ownership.
// Satisfied by *ownership.Coordinator.
type Coordinator interface {
	Start() error
	TryClaim(deviceID string) error
	Renew(deviceID string) error
	Release(deviceID string) error
	Announce()
	SetOnLost(callback func(deviceID string))
}

// Discovery publishes and retracts autodiscovery descriptors.
// Satisfied by *discovery.Publisher.
type Discovery interface {
	Publish(deviceID string, caps discovery.Capabilities) error
	Retract(deviceID string)
}

// Pairing manages pairing candidates.
// Satisfied by *pairing.Manager.
type Pairing interface {
	Start() error
	OnPairingBroadcast(ctx context.Context, deviceID, name string)
	Prune()
	SetOnClaimed(callback func(deviceID string))
	SetOnSeen(callback func(deviceID string))
}

// Store is the paired-device registry. Satisfied by *database.DB.
type Store interface {
	ListPairedDevices(ctx context.Context) ([]database.PairedDevice, error)
	GetPairedDevice(ctx context.Context, address string) (database.PairedDevice, error)
	UpsertPairedDevice(ctx context.Context, dev database.PairedDevice) error
	TouchPairedDevice(ctx context.Context, address string, seen time.Time) error
}

// Bridge wires the coordinator, pairing manager, discovery publisher,
// and mediator together and runs one session per owned device.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Bridge struct {
	cfg         *config.Config
	logger      Logger
	bus         Bus
	transport   ble.Transport
	coordinator Coordinator
	pairing     Pairing
	discovery   Discovery
	store       Store
	influx      *influxdb.Client
	metrics     *Metrics
	mediator    *mediator.Mediator

	mu       sync.Mutex
	sessions map[string]*session
	devices  map[string]*mug.Device

	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Deps groups the bridge's collaborators.
type Deps struct {
	Bus         Bus
	Transport   ble.Transport
	Coordinator Coordinator
	Pairing     Pairing
	Discovery   Discovery
	Store       Store

	// Influx is optional; nil disables telemetry writes.
	Influx *influxdb.Client

	Metrics *Metrics
	Logger  Logger
}

// New creates a bridge. Call Start to begin coordination.
func New(cfg *config.Config, deps Deps) *Bridge {
	b := &Bridge{
		cfg:         cfg,
		logger:      deps.Logger,
		bus:         deps.Bus,
		transport:   deps.Transport,
		coordinator: deps.Coordinator,
		pairing:     deps.Pairing,
		discovery:   deps.Discovery,
		store:       deps.Store,
		influx:      deps.Influx,
		metrics:     deps.Metrics,
		sessions:    make(map[string]*session),
		devices:     make(map[string]*mug.Device),
	}
	b.mediator = mediator.NewMediator(b, cfg.PollInterval(), deps.Logger)
	return b
}

// Start subscribes to coordination and command topics and launches the
// scan loop. The supplied context bounds the bridge's lifetime.
func (b *Bridge) Start(ctx context.Context) error {
	b.runCtx, b.cancel = context.WithCancel(ctx)

	if err := b.coordinator.Start(); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	if err := b.pairing.Start(); err != nil {
		return fmt.Errorf("start pairing manager: %w", err)
	}

	b.coordinator.SetOnLost(b.handleOwnershipLost)
	b.pairing.SetOnClaimed(b.handleClaimed)
	b.pairing.SetOnSeen(b.handleSeen)

	if err := b.bus.Subscribe(mqtt.CommandSubscribeTopic(), byte(b.cfg.MQTT.QoS), b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	// Peers' retained descriptors are a secondary registry: they teach
	// this instance about devices paired elsewhere, so it can adopt them
	// if their owner goes away.
	if err := b.bus.Subscribe(mqtt.DiscoverySubscribeTopic(b.cfg.Discovery.Prefix), byte(b.cfg.MQTT.QoS), b.handlePeerDiscovery); err != nil {
		return fmt.Errorf("subscribe to discovery tree: %w", err)
	}

	b.adoptPaired(b.runCtx)

	b.wg.Add(1)
	go b.scanLoop(b.runCtx)

	b.logger.Info("bridge started", "instance", b.cfg.Instance.ID)
	return nil
}

// Stop terminates every session and waits for the scan loop to exit.
// Session cleanup retracts discovery and releases leases before Stop
// returns, so a graceful shutdown leaves no stale retained claims.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}

		b.mu.Lock()
		active := make([]*session, 0, len(b.sessions))
		for _, s := range b.sessions {
			active = append(active, s)
		}
		b.mu.Unlock()

		for _, s := range active {
			s.stop()
			<-s.done
		}

		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// Device resolves a device ID to its live connection for the mediator.
func (b *Bridge) Device(deviceID string) (mediator.Controllable, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dev, ok := b.devices[deviceID]
	if !ok {
		return nil, false
	}
	return dev, true
}

// ConnectedDevices lists devices with a live connection on this instance.
func (b *Bridge) ConnectedDevices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	return ids
}

// scanLoop periodically adopts unowned paired devices and scans for
// pairing-mode advertisements.
func (b *Bridge) scanLoop(ctx context.Context) {
	defer b.wg.Done()

	interval := b.cfg.ScanInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pairing.Prune()
			b.adoptPaired(ctx)

			// The scan window leaves headroom before the next tick.
			scanCtx, cancel := context.WithTimeout(ctx, interval/2)
			err := b.transport.Scan(scanCtx, func(adv ble.Advertisement) error {
				b.pairing.OnPairingBroadcast(scanCtx, adv.Address, adv.Name)
				return nil
			})
			cancel()
			if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				b.logger.Warn("advertisement scan failed", "error", err)
			}
		}
	}
}

// adoptPaired tries to claim every paired device that has no session on
// this instance. Denials are routine; another instance owns the device.
func (b *Bridge) adoptPaired(ctx context.Context) {
	paired, err := b.store.ListPairedDevices(ctx)
	if err != nil {
		b.logger.Error("failed to list paired devices", "error", err)
		return
	}

	for _, dev := range paired {
		if b.hasSession(dev.Address) {
			continue
		}

		if err := b.coordinator.TryClaim(dev.Address); err != nil {
			if errors.Is(err, ownership.ErrDenied) {
				b.metrics.claimAttempt("denied")
				continue
			}
			b.metrics.claimAttempt("error")
			b.logger.Warn("claim attempt failed", "device", dev.Address, "error", err)
			continue
		}

		b.metrics.claimAttempt("granted")
		b.startSession(dev.Address, dev.Name)
	}
}

func (b *Bridge) hasSession(deviceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[deviceID]
	return ok
}

// startSession launches a session for a device this instance owns.
func (b *Bridge) startSession(deviceID, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[deviceID]; ok {
		return
	}
	if b.runCtx == nil || b.runCtx.Err() != nil {
		return
	}
	b.sessions[deviceID] = newSession(b.runCtx, b, deviceID, name)
}

func (b *Bridge) removeSession(deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, deviceID)
}

func (b *Bridge) registerDevice(deviceID string, dev *mug.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[deviceID] = dev
}

func (b *Bridge) unregisterDevice(deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.devices, deviceID)
}

// handleClaimed starts a session for a freshly paired device.
func (b *Bridge) handleClaimed(deviceID string) {
	name := ""
	if dev, err := b.store.GetPairedDevice(context.Background(), deviceID); err == nil {
		name = dev.Name
	}
	b.metrics.claimAttempt("granted")
	b.startSession(deviceID, name)
}

// handleSeen records liveness for an already-paired device.
func (b *Bridge) handleSeen(deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.store.TouchPairedDevice(ctx, deviceID, time.Now()); err != nil && !errors.Is(err, database.ErrNotFound) {
		b.logger.Warn("failed to record device liveness", "device", deviceID, "error", err)
	}
}

// handlePeerDiscovery learns devices from retained discovery descriptors
// published by peer instances. One descriptor per device is enough, so
// only the climate root entity is inspected; retractions (empty payloads)
// and devices already on record are ignored.
func (b *Bridge) handlePeerDiscovery(topic string, payload []byte) error {
	component, deviceID, object, ok := mqtt.ParseDiscoveryConfigTopic(b.cfg.Discovery.Prefix, topic)
	if !ok || component != "climate" || object != "root" {
		return nil
	}
	if len(payload) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := b.store.GetPairedDevice(ctx, deviceID); err == nil {
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	var descriptor struct {
		Device struct {
			Name string `json:"name"`
		} `json:"device"`
	}
	if err := json.Unmarshal(payload, &descriptor); err != nil {
		b.logger.Warn("unparseable peer discovery descriptor", "topic", topic, "error", err)
		return nil
	}

	now := time.Now()
	if err := b.store.UpsertPairedDevice(ctx, database.PairedDevice{
		Address:  deviceID,
		Name:     descriptor.Device.Name,
		PairedAt: now,
		LastSeen: now,
	}); err != nil {
		return fmt.Errorf("record peer device: %w", err)
	}

	b.logger.Info("learned device from peer discovery", "device", deviceID, "name", descriptor.Device.Name)
	return nil
}

// handleOwnershipLost stops the session for a device another instance
// won in a tie-break. Session cleanup handles retraction.
func (b *Bridge) handleOwnershipLost(deviceID string) {
	b.metrics.claimAttempt("lost")

	b.mu.Lock()
	s, ok := b.sessions[deviceID]
	b.mu.Unlock()
	if !ok {
		return
	}

	b.logger.Info("stopping session after ownership loss", "device", deviceID)
	s.stop()
}

// handleCommand routes an inbound command topic to the mediator.
// Rejections are routine outcomes; they are logged and counted, never
// surfaced as subscription errors.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, attribute, ok := mqtt.ParseCommandTopic(topic)
	if !ok {
		return fmt.Errorf("unrecognized command topic: %s", topic)
	}

	req, ok, err := b.buildRequest(deviceID, attribute, payload)
	if err != nil {
		b.logger.Warn("malformed command payload",
			"topic", topic, "payload", string(payload), "error", err)
		return nil
	}
	if !ok {
		// Schema-required topics with no effect (led on/off, brightness).
		b.logger.Debug("ignoring no-op command", "topic", topic)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConnectTimeout())
	defer cancel()

	if err := b.mediator.Submit(ctx, req); err != nil {
		var rej *mediator.Rejection
		if errors.As(err, &rej) {
			b.metrics.commandProcessed(req.Kind.String(), string(rej.Reason))
			return nil
		}
		return err
	}

	b.metrics.commandProcessed(req.Kind.String(), "accepted")
	b.publishDeviceState(deviceID)
	return nil
}

// buildRequest translates a command topic and payload into a mediator
// request. ok=false marks topics that are accepted but have no effect.
func (b *Bridge) buildRequest(deviceID, attribute string, payload []byte) (mediator.Request, bool, error) {
	req := mediator.Request{
		DeviceID:  deviceID,
		Requester: mqtt.CommandTopic(deviceID, attribute),
	}
	value := strings.TrimSpace(string(payload))

	switch attribute {
	case "temperature":
		target, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return req, false, fmt.Errorf("parse temperature: %w", err)
		}
		req.Kind = mediator.SetTemperature
		req.TemperatureC = b.toCelsius(deviceID, target)
		return req, true, nil

	case "power":
		req.Kind = mediator.SetHeater
		req.HeaterOn = value != "off"
		return req, true, nil

	case "led_color":
		color, err := parseColor(value)
		if err != nil {
			return req, false, err
		}
		req.Kind = mediator.SetColor
		req.Color = color
		return req, true, nil

	case "led", "led_brightness":
		// The light schema requires these command topics, but the LED
		// is always on and its brightness is fixed.
		return req, false, nil

	default:
		return req, false, fmt.Errorf("unsupported attribute %q", attribute)
	}
}

// toCelsius converts an inbound temperature to Celsius when the device
// displays Fahrenheit; external payloads use the display unit.
func (b *Bridge) toCelsius(deviceID string, value float64) float64 {
	b.mu.Lock()
	dev, ok := b.devices[deviceID]
	b.mu.Unlock()

	if ok && dev.State().Fahrenheit {
		return mug.FToC(value)
	}
	return value
}

// parseColor decodes "r,g,b" payloads, tolerating surrounding parens.
func parseColor(value string) (ble.Color, error) {
	trimmed := strings.NewReplacer("(", "", ")", "").Replace(value)
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return ble.Color{}, fmt.Errorf("expected r,g,b color, got %q", value)
	}

	channels := make([]byte, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 255 {
			return ble.Color{}, fmt.Errorf("invalid color channel %q", part)
		}
		channels[i] = byte(n)
	}
	return ble.Color{R: channels[0], G: channels[1], B: channels[2], A: 0xff}, nil
}

// publishDeviceState pushes the optimistic post-command state so
// observers see the new target before the next poll confirms it.
func (b *Bridge) publishDeviceState(deviceID string) {
	b.mu.Lock()
	dev, okDev := b.devices[deviceID]
	s, okSess := b.sessions[deviceID]
	b.mu.Unlock()

	if !okDev || !okSess {
		return
	}
	s.publishState(dev.State(), true)
}
