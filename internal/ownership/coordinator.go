package ownership

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
)

// Logger is the minimal logging interface needed by the coordinator.
// Satisfied by *logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bus is the subset of the MQTT client used for lease coordination.
// Narrowed for testability.
type Bus interface {
	PublishRetained(topic string, payload []byte) error
	ClearRetained(topic string) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Claim is the wire form of an ownership lease, published retained so
// every instance (including late joiners) sees the current owner.
type Claim struct {
	InstanceID string    `json:"instance_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// expired reports whether the claim is void at the given instant.
// An expired lease is equivalent to no lease.
func (c Claim) expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Coordinator arbitrates device ownership across bridge instances.
//
// Ownership is advertised, not centrally arbitrated: each instance
// publishes a retained "I own device X until T" message per lease, and
// every instance maintains a local view of all claims. A claim succeeds
// only when the local view shows no unexpired claim by another
// instance. Simultaneous claims are broken deterministically: the
// lexicographically lower instance ID wins, and the loser releases
// immediately and backs off for a random interval before retrying.
//
// Convergence is best-effort. A network partition can produce a
// temporary dual-ownership window bounded by the lease TTL; this is
// accepted because device commands are idempotent and duplicate polling
// is harmless.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Coordinator struct {
	instanceID string
	ttl        time.Duration
	backoffMax time.Duration
	bus        Bus
	logger     Logger

	mu      sync.Mutex
	claims  map[string]Claim     // device -> best-known claim
	owned   map[string]time.Time // devices we own -> lease expiry
	holdoff map[string]time.Time // devices we must not re-claim before

	// onLost is invoked (without the lock held) when a conflict forces
	// this instance to surrender a lease.
	onLost func(deviceID string)

	// Injected for tests.
	now    func() time.Time
	jitter func(max time.Duration) time.Duration
}

// NewCoordinator creates a coordinator for this instance.
//
// Parameters:
//   - instanceID: Unique identifier for this bridge instance
//   - ttl: Lease lifetime; leases must be renewed at least once per ttl/2
//   - backoffMax: Upper bound for the random conflict backoff
//   - bus: MQTT client for claim publication and subscription
//   - logger: Logger for coordination events
func NewCoordinator(instanceID string, ttl, backoffMax time.Duration, bus Bus, logger Logger) *Coordinator {
	return &Coordinator{
		instanceID: instanceID,
		ttl:        ttl,
		backoffMax: backoffMax,
		bus:        bus,
		logger:     logger,
		claims:     make(map[string]Claim),
		owned:      make(map[string]time.Time),
		holdoff:    make(map[string]time.Time),
		now:        time.Now,
		jitter: func(max time.Duration) time.Duration {
			return rand.N(max)
		},
	}
}

// Start subscribes to all instances' claim topics. Must be called once
// before TryClaim so the local view can populate from retained claims.
func (c *Coordinator) Start() error {
	if err := c.bus.Subscribe(mqtt.ClaimSubscribeTopic(), 1, c.handleClaim); err != nil {
		return fmt.Errorf("subscribe to claims: %w", err)
	}
	return nil
}

// SetOnLost registers a callback invoked when a tie-break forces this
// instance to surrender a lease it held.
func (c *Coordinator) SetOnLost(callback func(deviceID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLost = callback
}

// TryClaim attempts to take ownership of a device.
//
// Returns:
//   - nil: Lease granted and published
//   - ErrDenied: Another instance holds an unexpired lease, or this
//     device is in its post-conflict backoff window
func (c *Coordinator) TryClaim(deviceID string) error {
	now := c.now()

	c.mu.Lock()
	if until, held := c.holdoff[deviceID]; held {
		if now.Before(until) {
			c.mu.Unlock()
			return fmt.Errorf("%w: in conflict backoff for %s", ErrDenied, time.Until(until).Round(time.Millisecond))
		}
		delete(c.holdoff, deviceID)
	}

	if cl, ok := c.claims[deviceID]; ok && cl.InstanceID != c.instanceID && !cl.expired(now) {
		c.mu.Unlock()
		return fmt.Errorf("%w: device owned by %s until %s", ErrDenied, cl.InstanceID, cl.ExpiresAt.Format(time.RFC3339))
	}

	expiry := now.Add(c.ttl)
	c.owned[deviceID] = expiry
	c.claims[deviceID] = Claim{InstanceID: c.instanceID, ExpiresAt: expiry}
	c.mu.Unlock()

	if err := c.publishClaim(deviceID, expiry); err != nil {
		c.mu.Lock()
		delete(c.owned, deviceID)
		delete(c.claims, deviceID)
		c.mu.Unlock()
		return fmt.Errorf("publish claim for %s: %w", deviceID, err)
	}

	c.logger.Info("ownership claimed", "device", deviceID, "expires_at", expiry)
	return nil
}

// Renew extends a held lease. Called on each successful poll cycle.
//
// Returns:
//   - nil: Lease extended and republished
//   - ErrLost: This instance no longer holds the lease
func (c *Coordinator) Renew(deviceID string) error {
	now := c.now()

	c.mu.Lock()
	if _, held := c.owned[deviceID]; !held {
		c.mu.Unlock()
		return fmt.Errorf("%w: no lease held for %s", ErrLost, deviceID)
	}
	if cl, ok := c.claims[deviceID]; ok && cl.InstanceID != c.instanceID && !cl.expired(now) {
		delete(c.owned, deviceID)
		c.mu.Unlock()
		return fmt.Errorf("%w: device taken over by %s", ErrLost, cl.InstanceID)
	}

	expiry := now.Add(c.ttl)
	c.owned[deviceID] = expiry
	c.claims[deviceID] = Claim{InstanceID: c.instanceID, ExpiresAt: expiry}
	c.mu.Unlock()

	if err := c.publishClaim(deviceID, expiry); err != nil {
		// Keep the lease locally; the broker may be briefly unreachable
		// and the retained claim is still standing from the last renew.
		return fmt.Errorf("renew claim for %s: %w", deviceID, err)
	}

	return nil
}

// Release surrenders a lease, clearing the retained claim so peers may
// claim the device immediately. Idempotent.
func (c *Coordinator) Release(deviceID string) error {
	c.mu.Lock()
	_, held := c.owned[deviceID]
	delete(c.owned, deviceID)
	if cl, ok := c.claims[deviceID]; ok && cl.InstanceID == c.instanceID {
		delete(c.claims, deviceID)
	}
	c.mu.Unlock()

	if !held {
		return nil
	}

	if err := c.bus.ClearRetained(mqtt.ClaimTopic(c.instanceID, deviceID)); err != nil {
		return fmt.Errorf("clear claim for %s: %w", deviceID, err)
	}

	c.logger.Info("ownership released", "device", deviceID)
	return nil
}

// Announce republishes every held lease with a fresh expiry. Wired to
// the MQTT client's reconnect hook: after a broker outage, leases are
// re-announced rather than assumed valid.
func (c *Coordinator) Announce() {
	now := c.now()

	c.mu.Lock()
	held := make(map[string]time.Time, len(c.owned))
	for id := range c.owned {
		expiry := now.Add(c.ttl)
		c.owned[id] = expiry
		c.claims[id] = Claim{InstanceID: c.instanceID, ExpiresAt: expiry}
		held[id] = expiry
	}
	c.mu.Unlock()

	for id, expiry := range held {
		if err := c.publishClaim(id, expiry); err != nil {
			c.logger.Error("failed to re-announce lease", "device", id, "error", err)
		}
	}
}

// Owner returns the best-known unexpired owner of a device.
func (c *Coordinator) Owner(deviceID string) (instanceID string, ok bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cl, found := c.claims[deviceID]
	if !found || cl.expired(now) {
		return "", false
	}
	return cl.InstanceID, true
}

// Owns reports whether this instance holds an unexpired lease for the device.
func (c *Coordinator) Owns(deviceID string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, held := c.owned[deviceID]
	return held && now.Before(expiry)
}

// OwnedDevices returns the devices this instance currently holds leases for.
func (c *Coordinator) OwnedDevices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	devices := make([]string, 0, len(c.owned))
	for id := range c.owned {
		devices = append(devices, id)
	}
	return devices
}

func (c *Coordinator) publishClaim(deviceID string, expiry time.Time) error {
	payload, err := json.Marshal(Claim{InstanceID: c.instanceID, ExpiresAt: expiry})
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}
	return c.bus.PublishRetained(mqtt.ClaimTopic(c.instanceID, deviceID), payload)
}

// handleClaim processes a peer's claim message (or clearance) and
// resolves conflicts against our own leases.
func (c *Coordinator) handleClaim(topic string, payload []byte) error {
	peerID, deviceID, ok := mqtt.ParseClaimTopic(topic)
	if !ok {
		return fmt.Errorf("unrecognized claim topic: %s", topic)
	}
	if peerID == c.instanceID {
		// Retained echo of our own claim.
		return nil
	}

	if len(payload) == 0 {
		c.handlePeerRelease(peerID, deviceID)
		return nil
	}

	var cl Claim
	if err := json.Unmarshal(payload, &cl); err != nil {
		c.logger.Warn("ignoring malformed claim", "topic", topic, "error", err)
		return nil
	}
	cl.InstanceID = peerID

	c.observePeerClaim(deviceID, cl)
	return nil
}

func (c *Coordinator) handlePeerRelease(peerID, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.claims[deviceID]; ok && cl.InstanceID == peerID {
		delete(c.claims, deviceID)
	}
}

func (c *Coordinator) observePeerClaim(deviceID string, peer Claim) {
	now := c.now()

	c.mu.Lock()

	if peer.expired(now) {
		c.mu.Unlock()
		return
	}

	_, weOwn := c.owned[deviceID]
	if !weOwn {
		c.claims[deviceID] = peer
		c.mu.Unlock()
		return
	}

	// Conflict: both instances believe they own the device. Lower
	// instance ID wins; the loser releases and backs off.
	if c.instanceID < peer.InstanceID {
		expiry := now.Add(c.ttl)
		c.owned[deviceID] = expiry
		c.claims[deviceID] = Claim{InstanceID: c.instanceID, ExpiresAt: expiry}
		c.mu.Unlock()

		c.logger.Warn("claim conflict won, re-asserting lease",
			"device", deviceID, "peer", peer.InstanceID)
		if err := c.publishClaim(deviceID, expiry); err != nil {
			c.logger.Error("failed to re-assert lease", "device", deviceID, "error", err)
		}
		return
	}

	delete(c.owned, deviceID)
	c.claims[deviceID] = peer
	c.holdoff[deviceID] = now.Add(c.jitter(c.backoffMax))
	callback := c.onLost
	c.mu.Unlock()

	c.logger.Warn("claim conflict lost, surrendering lease",
		"device", deviceID, "peer", peer.InstanceID)

	if err := c.bus.ClearRetained(mqtt.ClaimTopic(c.instanceID, deviceID)); err != nil {
		c.logger.Error("failed to clear surrendered claim", "device", deviceID, "error", err)
	}

	if callback != nil {
		callback(deviceID)
	}
}
