package ownership

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
)

const testDevice = "AA:BB:CC:DD:EE:FF"

// mockBus records publishes and captures the claim subscription handler
// so tests can inject peer messages.
type mockBus struct {
	mu       sync.Mutex
	retained map[string][]byte
	cleared  []string
	handler  mqtt.MessageHandler
}

func newMockBus() *mockBus {
	return &mockBus{retained: make(map[string][]byte)}
}

func (m *mockBus) PublishRetained(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retained[topic] = payload
	return nil
}

func (m *mockBus) ClearRetained(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retained, topic)
	m.cleared = append(m.cleared, topic)
	return nil
}

func (m *mockBus) Subscribe(_ string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return nil
}

func (m *mockBus) retainedPayload(topic string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.retained[topic]
	return p, ok
}

// deliverPeerClaim simulates a peer's retained claim arriving.
func (m *mockBus) deliverPeerClaim(t *testing.T, peerID, device string, expiresAt time.Time) {
	t.Helper()
	payload, err := json.Marshal(Claim{InstanceID: peerID, ExpiresAt: expiresAt})
	if err != nil {
		t.Fatalf("marshal peer claim: %v", err)
	}
	if err := m.handler(mqtt.ClaimTopic(peerID, device), payload); err != nil {
		t.Fatalf("deliver peer claim: %v", err)
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// newTestCoordinator returns a coordinator with a controllable clock and
// deterministic (maximal) conflict backoff.
func newTestCoordinator(t *testing.T, instanceID string, bus *mockBus) (*Coordinator, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCoordinator(instanceID, 30*time.Second, 3*time.Second, bus, nopLogger{})
	c.now = func() time.Time { return now }
	c.jitter = func(max time.Duration) time.Duration { return max }

	if err := c.Start(); err != nil {
		t.Fatalf("start coordinator: %v", err)
	}
	return c, &now
}

func TestTryClaimGranted(t *testing.T) {
	bus := newMockBus()
	c, _ := newTestCoordinator(t, "instance-a", bus)

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Owns(testDevice) {
		t.Error("expected device to be owned after claim")
	}

	payload, ok := bus.retainedPayload(mqtt.ClaimTopic("instance-a", testDevice))
	if !ok {
		t.Fatal("expected retained claim to be published")
	}

	var cl Claim
	if err := json.Unmarshal(payload, &cl); err != nil {
		t.Fatalf("unmarshal claim: %v", err)
	}
	if cl.InstanceID != "instance-a" {
		t.Errorf("expected instance-a in claim, got %s", cl.InstanceID)
	}
}

func TestTryClaimDeniedWhilePeerLeaseUnexpired(t *testing.T) {
	bus := newMockBus()
	c, now := newTestCoordinator(t, "instance-b", bus)

	bus.deliverPeerClaim(t, "instance-a", testDevice, now.Add(30*time.Second))

	if err := c.TryClaim(testDevice); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}

	// At T+35s the peer's lease has expired without renewal; the claim
	// must now succeed.
	*now = now.Add(35 * time.Second)
	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("expected claim to succeed after peer expiry, got %v", err)
	}
}

func TestRenew(t *testing.T) {
	bus := newMockBus()
	c, now := newTestCoordinator(t, "instance-a", bus)

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("claim: %v", err)
	}

	*now = now.Add(10 * time.Second)
	if err := c.Renew(testDevice); err != nil {
		t.Fatalf("renew: %v", err)
	}

	// The lease must now extend 30s past the renewal instant.
	payload, _ := bus.retainedPayload(mqtt.ClaimTopic("instance-a", testDevice))
	var cl Claim
	if err := json.Unmarshal(payload, &cl); err != nil {
		t.Fatalf("unmarshal claim: %v", err)
	}
	if want := now.Add(30 * time.Second); !cl.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, cl.ExpiresAt)
	}
}

func TestRenewWithoutLease(t *testing.T) {
	bus := newMockBus()
	c, _ := newTestCoordinator(t, "instance-a", bus)

	if err := c.Renew(testDevice); !errors.Is(err, ErrLost) {
		t.Errorf("expected ErrLost, got %v", err)
	}
}

func TestReleaseClearsRetainedClaim(t *testing.T) {
	bus := newMockBus()
	c, _ := newTestCoordinator(t, "instance-a", bus)

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := c.Release(testDevice); err != nil {
		t.Fatalf("release: %v", err)
	}

	if c.Owns(testDevice) {
		t.Error("expected device to be unowned after release")
	}
	if _, ok := bus.retainedPayload(mqtt.ClaimTopic("instance-a", testDevice)); ok {
		t.Error("expected retained claim to be cleared")
	}

	// Releasing again is a no-op.
	if err := c.Release(testDevice); err != nil {
		t.Errorf("second release: %v", err)
	}
}

func TestConflictLowerInstanceWins(t *testing.T) {
	bus := newMockBus()
	c, now := newTestCoordinator(t, "instance-b", bus)

	var lost []string
	c.SetOnLost(func(deviceID string) { lost = append(lost, deviceID) })

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// instance-a sorts lower than instance-b, so its claim wins.
	bus.deliverPeerClaim(t, "instance-a", testDevice, now.Add(30*time.Second))

	if c.Owns(testDevice) {
		t.Error("expected lease to be surrendered to lower instance ID")
	}
	if len(lost) != 1 || lost[0] != testDevice {
		t.Errorf("expected onLost callback for %s, got %v", testDevice, lost)
	}
	if _, ok := bus.retainedPayload(mqtt.ClaimTopic("instance-b", testDevice)); ok {
		t.Error("expected surrendered claim to be cleared from the broker")
	}

	// The loser must back off before re-claiming.
	if err := c.TryClaim(testDevice); !errors.Is(err, ErrDenied) {
		t.Errorf("expected ErrDenied during conflict backoff, got %v", err)
	}

	if owner, ok := c.Owner(testDevice); !ok || owner != "instance-a" {
		t.Errorf("expected instance-a as owner, got %q (%v)", owner, ok)
	}
}

func TestConflictHigherInstanceLoses(t *testing.T) {
	bus := newMockBus()
	c, now := newTestCoordinator(t, "instance-a", bus)

	var lost []string
	c.SetOnLost(func(deviceID string) { lost = append(lost, deviceID) })

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// instance-b sorts higher, so our lease stands and is re-asserted.
	bus.deliverPeerClaim(t, "instance-b", testDevice, now.Add(30*time.Second))

	if !c.Owns(testDevice) {
		t.Error("expected lease to survive conflict with higher instance ID")
	}
	if len(lost) != 0 {
		t.Errorf("expected no onLost callback, got %v", lost)
	}
	if _, ok := bus.retainedPayload(mqtt.ClaimTopic("instance-a", testDevice)); !ok {
		t.Error("expected re-asserted claim to remain retained")
	}
}

func TestPeerReleaseFreesDevice(t *testing.T) {
	bus := newMockBus()
	c, now := newTestCoordinator(t, "instance-b", bus)

	bus.deliverPeerClaim(t, "instance-a", testDevice, now.Add(30*time.Second))
	if err := c.TryClaim(testDevice); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}

	// Peer clears its retained claim (graceful release).
	if err := bus.handler(mqtt.ClaimTopic("instance-a", testDevice), nil); err != nil {
		t.Fatalf("deliver release: %v", err)
	}

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("expected claim to succeed after peer release, got %v", err)
	}
}

func TestAnnounceRepublishesLeases(t *testing.T) {
	bus := newMockBus()
	c, now := newTestCoordinator(t, "instance-a", bus)

	if err := c.TryClaim(testDevice); err != nil {
		t.Fatalf("claim: %v", err)
	}

	*now = now.Add(5 * time.Second)
	c.Announce()

	payload, _ := bus.retainedPayload(mqtt.ClaimTopic("instance-a", testDevice))
	var cl Claim
	if err := json.Unmarshal(payload, &cl); err != nil {
		t.Fatalf("unmarshal claim: %v", err)
	}
	if want := now.Add(30 * time.Second); !cl.ExpiresAt.Equal(want) {
		t.Errorf("expected re-announced expiry %v, got %v", want, cl.ExpiresAt)
	}
}

func TestMalformedClaimIgnored(t *testing.T) {
	bus := newMockBus()
	c, _ := newTestCoordinator(t, "instance-b", bus)

	if err := bus.handler(mqtt.ClaimTopic("instance-a", testDevice), []byte("{not json")); err != nil {
		t.Fatalf("handler returned error for malformed claim: %v", err)
	}

	if err := c.TryClaim(testDevice); err != nil {
		t.Errorf("malformed claim must not block claiming, got %v", err)
	}
}
