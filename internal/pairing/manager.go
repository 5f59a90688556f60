package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthware/emberbridge/internal/infrastructure/database"
	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
	"github.com/hearthware/emberbridge/internal/ownership"
)

// Logger is the minimal logging interface needed by the manager.
// Satisfied by *logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bus is the subset of the MQTT client used for pairing.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Claimer grants device ownership. Satisfied by *ownership.Coordinator.
type Claimer interface {
	TryClaim(deviceID string) error
}

// Store persists paired devices. Satisfied by *database.DB.
type Store interface {
	UpsertPairedDevice(ctx context.Context, dev database.PairedDevice) error
	GetPairedDevice(ctx context.Context, address string) (database.PairedDevice, error)
}

// Candidate is a device observed advertising pairing mode that has not
// yet been claimed.
type Candidate struct {
	DeviceID   string    `json:"device_id"`
	Name       string    `json:"name,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	ClaimToken string    `json:"claim_token"`
}

// Manager tracks pairing candidates and promotes them into paired
// devices via the ownership coordinator.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	bus     Bus
	claimer Claimer
	store   Store
	logger  Logger
	timeout time.Duration

	mu         sync.Mutex
	candidates map[string]*Candidate
	order      []string // insertion order for presentation

	// onClaimed is invoked after a candidate is successfully promoted.
	onClaimed func(deviceID string)

	// onSeen is invoked when an already-paired device advertises again,
	// as a liveness signal only.
	onSeen func(deviceID string)

	now func() time.Time
}

// NewManager creates a pairing manager.
//
// Parameters:
//   - bus: MQTT client for pending-list publication and claim requests
//   - claimer: Ownership coordinator granting leases
//   - store: Persistent paired-device registry
//   - timeout: How long an unclaimed candidate is kept
//   - logger: Logger for pairing events
func NewManager(bus Bus, claimer Claimer, store Store, timeout time.Duration, logger Logger) *Manager {
	return &Manager{
		bus:        bus,
		claimer:    claimer,
		store:      store,
		logger:     logger,
		timeout:    timeout,
		candidates: make(map[string]*Candidate),
		now:        time.Now,
	}
}

// Start subscribes to claim requests (e.g. a dashboard button press
// publishing to the pairing claim topic).
func (m *Manager) Start() error {
	if err := m.bus.Subscribe(mqtt.PairingClaimSubscribeTopic(), 1, m.handleClaimRequest); err != nil {
		return fmt.Errorf("subscribe to pairing claims: %w", err)
	}
	return nil
}

// SetOnClaimed registers a callback invoked after a successful claim.
func (m *Manager) SetOnClaimed(callback func(deviceID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClaimed = callback
}

// SetOnSeen registers a callback invoked when an already-paired device
// advertises pairing mode again.
func (m *Manager) SetOnSeen(callback func(deviceID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSeen = callback
}

// OnPairingBroadcast registers or refreshes a candidate for a device
// seen advertising pairing mode. Broadcasts from already-paired devices
// do not create candidates; they are forwarded as liveness signals.
func (m *Manager) OnPairingBroadcast(ctx context.Context, deviceID, name string) {
	_, err := m.store.GetPairedDevice(ctx, deviceID)
	switch {
	case err == nil:
		m.mu.Lock()
		seen := m.onSeen
		m.mu.Unlock()
		if seen != nil {
			seen(deviceID)
		}
		return
	case !errors.Is(err, database.ErrNotFound):
		m.logger.Error("paired device lookup failed", "device", deviceID, "error", err)
		return
	}

	m.mu.Lock()
	if existing, ok := m.candidates[deviceID]; ok {
		// Refresh keeps the candidate alive past the prune horizon but
		// preserves its position and token.
		existing.FirstSeen = m.now()
		if name != "" {
			existing.Name = name
		}
		m.mu.Unlock()
		m.publishPending()
		return
	}

	m.candidates[deviceID] = &Candidate{
		DeviceID:   deviceID,
		Name:       name,
		FirstSeen:  m.now(),
		ClaimToken: uuid.NewString(),
	}
	m.order = append(m.order, deviceID)
	m.mu.Unlock()

	m.logger.Info("pairing candidate observed", "device", deviceID, "name", name)
	m.publishPending()
}

// ListPending returns unclaimed candidates in insertion order.
func (m *Manager) ListPending() []Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]Candidate, 0, len(m.order))
	for _, id := range m.order {
		if c, ok := m.candidates[id]; ok {
			pending = append(pending, *c)
		}
	}
	return pending
}

// Claim promotes a candidate into a paired device. The ownership
// coordinator arbitrates first; only a granted lease results in a
// persisted pairing.
//
// Returns:
//   - nil: Candidate promoted, persisted, and removed from the pending list
//   - ErrUnknownCandidate: No such candidate is pending
//   - ownership.ErrDenied: Another instance owns or is claiming the device
func (m *Manager) Claim(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	cand, ok := m.candidates[deviceID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, deviceID)
	}

	if err := m.claimer.TryClaim(deviceID); err != nil {
		return fmt.Errorf("claim candidate %s: %w", deviceID, err)
	}

	now := m.now()
	dev := database.PairedDevice{
		Address:  deviceID,
		Name:     cand.Name,
		PairedAt: now,
		LastSeen: now,
	}
	if err := m.store.UpsertPairedDevice(ctx, dev); err != nil {
		return fmt.Errorf("persist pairing for %s: %w", deviceID, err)
	}

	m.removeCandidate(deviceID)
	m.publishPending()

	m.logger.Info("device paired", "device", deviceID, "name", cand.Name)

	m.mu.Lock()
	claimed := m.onClaimed
	m.mu.Unlock()
	if claimed != nil {
		claimed(deviceID)
	}
	return nil
}

// Prune discards candidates older than the pairing timeout. Called
// periodically by the scan loop.
func (m *Manager) Prune() {
	cutoff := m.now().Add(-m.timeout)

	m.mu.Lock()
	var expired []string
	for id, c := range m.candidates {
		if c.FirstSeen.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.candidates, id)
	}
	if len(expired) > 0 {
		m.compactOrderLocked()
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		m.logger.Info("expired pairing candidates discarded", "count", len(expired))
		m.publishPending()
	}
}

func (m *Manager) removeCandidate(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.candidates, deviceID)
	m.compactOrderLocked()
}

// compactOrderLocked drops order entries whose candidates are gone.
// Caller must hold m.mu.
func (m *Manager) compactOrderLocked() {
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.candidates[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

// publishPending sends the current candidate list for UI presentation.
// Non-retained: a dashboard that missed it will get the next update.
func (m *Manager) publishPending() {
	payload, err := json.Marshal(m.ListPending())
	if err != nil {
		m.logger.Error("failed to marshal pending list", "error", err)
		return
	}
	if err := m.bus.Publish(mqtt.PairingPendingTopic(), payload, 1, false); err != nil {
		m.logger.Warn("failed to publish pending list", "error", err)
	}
}

// handleClaimRequest processes a claim published to the pairing claim
// topic. Denials are routine (another instance may have won the race)
// and are logged, not returned.
func (m *Manager) handleClaimRequest(topic string, _ []byte) error {
	deviceID, ok := mqtt.ParsePairingClaimTopic(topic)
	if !ok {
		return fmt.Errorf("unrecognized pairing claim topic: %s", topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Claim(ctx, deviceID); err != nil {
		switch {
		case errors.Is(err, ErrUnknownCandidate), errors.Is(err, ownership.ErrDenied):
			m.logger.Info("pairing claim not granted", "device", deviceID, "reason", err)
			return nil
		default:
			return err
		}
	}
	return nil
}
