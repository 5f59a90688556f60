package discovery

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

const testDevice = "AA:BB:CC:DD:EE:FF"

type mockBus struct {
	mu        sync.Mutex
	published []mockMessage
	cleared   []string
}

type mockMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *mockBus) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockMessage{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockBus) ClearRetained(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, topic)
	return nil
}

func (m *mockBus) find(t *testing.T, fragment string) mockMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.published {
		if strings.Contains(msg.topic, fragment) {
			return msg
		}
	}
	t.Fatalf("no published message matching %q", fragment)
	return mockMessage{}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

func TestPublishEmitsAllEntities(t *testing.T) {
	bus := &mockBus{}
	p := NewPublisher(bus, "homeassistant", nopLogger{})

	caps := Capabilities{Name: "Ember Travel Mug", Metric: true, LiquidPresent: true}
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bus.published) != 5 {
		t.Fatalf("expected 5 descriptors, got %d", len(bus.published))
	}

	climate := bus.find(t, "climate/AA_BB_CC_DD_EE_FF/root/config")
	if !climate.retained {
		t.Error("climate descriptor must be retained")
	}

	var ce ClimateEntity
	if err := json.Unmarshal(climate.payload, &ce); err != nil {
		t.Fatalf("unmarshal climate descriptor: %v", err)
	}
	if len(ce.Modes) != 2 || ce.Modes[0] != "heat" {
		t.Errorf("expected heat mode with liquid present, got %v", ce.Modes)
	}
	if ce.TemperatureUnit != "C" || ce.MinTemp != 50 || ce.MaxTemp != 62.5 {
		t.Errorf("unexpected metric range: %s %v-%v", ce.TemperatureUnit, ce.MinTemp, ce.MaxTemp)
	}
	if ce.TemperatureCommandTopic != "ember/AA_BB_CC_DD_EE_FF/temperature/set" {
		t.Errorf("unexpected command topic: %s", ce.TemperatureCommandTopic)
	}

	button := bus.find(t, "button/AA_BB_CC_DD_EE_FF/pairing_button/config")
	if button.retained {
		t.Error("pairing button descriptor must not be retained")
	}
}

func TestPublishEmptyMugOffersOffOnly(t *testing.T) {
	bus := &mockBus{}
	p := NewPublisher(bus, "homeassistant", nopLogger{})

	caps := Capabilities{Name: "Ember Travel Mug", Metric: true, LiquidPresent: false}
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ce ClimateEntity
	climate := bus.find(t, "climate/")
	if err := json.Unmarshal(climate.payload, &ce); err != nil {
		t.Fatalf("unmarshal climate descriptor: %v", err)
	}
	if len(ce.Modes) != 1 || ce.Modes[0] != "off" {
		t.Errorf("expected only off mode for empty mug, got %v", ce.Modes)
	}
}

func TestPublishImperialRange(t *testing.T) {
	bus := &mockBus{}
	p := NewPublisher(bus, "homeassistant", nopLogger{})

	caps := Capabilities{Name: "Ember Travel Mug", Metric: false, LiquidPresent: true}
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ce ClimateEntity
	climate := bus.find(t, "climate/")
	if err := json.Unmarshal(climate.payload, &ce); err != nil {
		t.Fatalf("unmarshal climate descriptor: %v", err)
	}
	if ce.TemperatureUnit != "F" || ce.MinTemp != 120 || ce.MaxTemp != 145 {
		t.Errorf("unexpected imperial range: %s %v-%v", ce.TemperatureUnit, ce.MinTemp, ce.MaxTemp)
	}
}

func TestPublishIdempotent(t *testing.T) {
	bus := &mockBus{}
	p := NewPublisher(bus, "homeassistant", nopLogger{})

	caps := Capabilities{Name: "Ember Travel Mug", Metric: true, LiquidPresent: true}
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	first := len(bus.published)

	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if len(bus.published) != first {
		t.Errorf("identical descriptors must not be re-sent: %d -> %d", first, len(bus.published))
	}

	// Changing liquid presence alters the climate modes, so exactly the
	// climate descriptor is republished.
	caps.LiquidPresent = false
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("third publish: %v", err)
	}
	if len(bus.published) != first+1 {
		t.Errorf("expected one changed descriptor, got %d new", len(bus.published)-first)
	}
}

func TestRetractClearsAllTopics(t *testing.T) {
	bus := &mockBus{}
	p := NewPublisher(bus, "homeassistant", nopLogger{})

	caps := Capabilities{Name: "Ember Travel Mug", Metric: true, LiquidPresent: true}
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("publish: %v", err)
	}

	p.Retract(testDevice)

	if len(bus.cleared) != 5 {
		t.Fatalf("expected 5 cleared topics, got %d", len(bus.cleared))
	}

	// After retraction, republishing must emit everything again.
	if err := p.Publish(testDevice, caps); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if len(bus.published) != 10 {
		t.Errorf("expected full republish after retract, got %d total messages", len(bus.published))
	}
}
