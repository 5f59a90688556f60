package discovery

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
)

// Logger is the minimal logging interface needed by the publisher.
// Satisfied by *logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Bus is the subset of the MQTT client used for discovery publication.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	ClearRetained(topic string) error
}

// Publisher emits and retracts autodiscovery descriptors.
//
// Publish is idempotent: descriptors identical to the last published
// version are skipped, so it is safe to call on every ownership-gain
// and liquid-state change without tracking prior state at the call
// site. Retraction clears the retained config topics so the platform
// removes the entities.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Publisher struct {
	bus    Bus
	prefix string
	logger Logger

	mu        sync.Mutex
	published map[string]map[string][32]byte // device -> topic -> payload digest
}

// NewPublisher creates a discovery publisher.
//
// Parameters:
//   - bus: MQTT client for descriptor publication
//   - prefix: Discovery topic prefix (typically "homeassistant")
//   - logger: Logger for discovery events
func NewPublisher(bus Bus, prefix string, logger Logger) *Publisher {
	return &Publisher{
		bus:       bus,
		prefix:    prefix,
		logger:    logger,
		published: make(map[string]map[string][32]byte),
	}
}

// Publish emits the discovery descriptors for a device. Descriptors
// unchanged since the last call are not re-sent.
func (p *Publisher) Publish(deviceID string, caps Capabilities) error {
	entities, err := buildEntities(p.prefix, deviceID, caps)
	if err != nil {
		return err
	}

	p.mu.Lock()
	digests, ok := p.published[deviceID]
	if !ok {
		digests = make(map[string][32]byte)
		p.published[deviceID] = digests
	}
	p.mu.Unlock()

	for _, e := range entities {
		digest := sha256.Sum256(e.payload)

		p.mu.Lock()
		unchanged := digests[e.topic] == digest
		p.mu.Unlock()
		if unchanged {
			continue
		}

		if err := p.bus.Publish(e.topic, e.payload, 1, e.retain); err != nil {
			return fmt.Errorf("publish discovery for %s: %w", deviceID, err)
		}

		p.mu.Lock()
		digests[e.topic] = digest
		p.mu.Unlock()
	}

	p.logger.Info("discovery published", "device", deviceID, "liquid_present", caps.LiquidPresent)
	return nil
}

// Retract clears every discovery descriptor for a device so the
// platform removes its entities. Idempotent; errors on individual
// topics are logged and the remaining topics still cleared.
func (p *Publisher) Retract(deviceID string) {
	for _, obj := range entityObjects {
		topic := mqtt.DiscoveryConfigTopic(p.prefix, obj.component, deviceID, obj.object)
		if err := p.bus.ClearRetained(topic); err != nil {
			p.logger.Warn("failed to clear discovery topic", "topic", topic, "error", err)
		}
	}

	p.mu.Lock()
	delete(p.published, deviceID)
	p.mu.Unlock()

	p.logger.Info("discovery retracted", "device", deviceID)
}
