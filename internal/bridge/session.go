package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hearthware/emberbridge/internal/discovery"
	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
	"github.com/hearthware/emberbridge/internal/mug"
)

// errLinkLost signals the poll loop that the connection dropped and the
// session should attempt to reconnect.
var errLinkLost = errors.New("device link lost")

// session drives one owned device through its connection lifecycle:
// Idle, Connecting, Connected (alternating poll and apply), and
// Disconnected with bounded reconnect attempts. Exhausting the retry
// budget or losing ownership returns the session to Idle, releasing the
// lease so another instance may try.
type session struct {
	deviceID string
	name     string
	b        *Bridge

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state SessionState
	last  mug.State
}

// newSession creates and starts a session goroutine for an owned device.
func newSession(ctx context.Context, b *Bridge, deviceID, name string) *session {
	sessCtx, cancel := context.WithCancel(ctx)
	s := &session{
		deviceID: deviceID,
		name:     name,
		b:        b,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(sessCtx)
	return s
}

// stop requests termination. The caller may wait on done.
func (s *session) stop() {
	s.cancel()
}

func (s *session) setState(state SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.b.logger.Debug("session state changed",
			"device", s.deviceID, "from", prev.String(), "to", state.String())
	}
}

// State returns the session's lifecycle state.
func (s *session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) rememberState(state mug.State) {
	s.mu.Lock()
	s.last = state
	s.mu.Unlock()
}

func (s *session) lastState() mug.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// run owns the device for the session's lifetime. Cleanup always
// retracts discovery and releases the lease, even on abnormal exit.
func (s *session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cleanup()

	maxRetries := s.b.cfg.Devices.MaxConnectRetries
	bo := newBackoff(s.b.cfg.BackoffInitial(), s.b.cfg.BackoffMax())
	retries := 0

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)

		connectCtx, cancel := context.WithTimeout(ctx, s.b.cfg.ConnectTimeout())
		link, err := s.b.transport.Connect(connectCtx, s.deviceID)
		cancel()
		if err != nil {
			s.b.metrics.connectAttempt("error")
			retries++
			s.setState(StateDisconnected)

			if retries > maxRetries {
				s.b.logger.Warn("connect retries exhausted, returning device to idle",
					"device", s.deviceID, "attempts", retries)
				s.setState(StateIdle)
				return
			}

			delay := bo.next()
			s.b.logger.Debug("connect failed, backing off",
				"device", s.deviceID, "attempt", retries, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		s.b.metrics.connectAttempt("ok")
		dev := mug.NewDevice(s.deviceID, link)

		// First refresh establishes the mirror before anything is
		// advertised; a failure here counts as a failed connect.
		state, err := dev.Refresh(ctx)
		if err != nil {
			_ = dev.Close()
			s.b.metrics.connectAttempt("error")
			retries++
			s.setState(StateDisconnected)
			if retries > maxRetries {
				s.setState(StateIdle)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.next()):
			}
			continue
		}

		retries = 0
		bo.reset()

		s.b.registerDevice(s.deviceID, dev)
		s.b.metrics.deviceConnected()
		s.setState(StateConnected)
		s.b.logger.Info("device connected", "device", s.deviceID, "name", s.name)

		s.publishCycle(state)

		err = s.pollLoop(ctx, dev)

		s.b.unregisterDevice(s.deviceID)
		s.b.metrics.deviceDisconnected()
		_ = dev.Close()

		if !errors.Is(err, errLinkLost) {
			// Cancellation or ownership loss: no reconnect.
			s.setState(StateDisconnecting)
			return
		}

		s.setState(StateDisconnected)
		retries++
		if retries > maxRetries {
			s.b.logger.Warn("reconnect retries exhausted, returning device to idle",
				"device", s.deviceID, "attempts", retries)
			s.setState(StateIdle)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(bo.next()):
		}
	}
}

// pollLoop alternates polling with lease renewal until the link drops,
// ownership is lost, or the session is cancelled.
func (s *session) pollLoop(ctx context.Context, dev *mug.Device) error {
	interval := s.b.cfg.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state, err := dev.Refresh(ctx)
			if err != nil {
				s.b.metrics.pollCycle("error")
				s.b.logger.Warn("poll failed", "device", s.deviceID, "error", err)
				return errLinkLost
			}
			s.b.metrics.pollCycle("ok")

			if err := s.b.coordinator.Renew(s.deviceID); err != nil {
				s.b.logger.Info("lease renewal failed, stopping session",
					"device", s.deviceID, "reason", err)
				return err
			}

			s.publishCycle(state)
		}
	}
}

// publishCycle pushes one poll result outward: discovery descriptors
// (idempotent), the retained state document, and telemetry samples.
func (s *session) publishCycle(state mug.State) {
	s.rememberState(state)

	caps := discoveryCaps(s.name, state)
	if err := s.b.discovery.Publish(s.deviceID, caps); err != nil {
		s.b.logger.Warn("discovery publish failed", "device", s.deviceID, "error", err)
	}

	s.publishState(state, true)

	if s.b.influx != nil {
		id := mqtt.SanitiseMAC(s.deviceID)
		s.b.influx.WriteTemperature(id, state.CurrentTempC, state.TargetTempC)
		s.b.influx.WriteBattery(id, state.Battery.Percent, state.Battery.Charging)
	}
}

// publishState writes the retained state document.
func (s *session) publishState(state mug.State, online bool) {
	payload, err := json.Marshal(buildStatePayload(state, online))
	if err != nil {
		s.b.logger.Error("failed to marshal state payload", "device", s.deviceID, "error", err)
		return
	}
	if err := s.b.bus.PublishRetained(mqtt.StateTopic(s.deviceID), payload); err != nil {
		s.b.logger.Warn("state publish failed", "device", s.deviceID, "error", err)
	}
}

// cleanup runs on every exit path: discovery is retracted, observers
// see the device offline, and the lease is released so peers may claim.
func (s *session) cleanup() {
	s.b.discovery.Retract(s.deviceID)
	s.publishState(s.lastState(), false)

	if err := s.b.coordinator.Release(s.deviceID); err != nil {
		s.b.logger.Warn("lease release failed", "device", s.deviceID, "error", err)
	}

	s.setState(StateIdle)
	s.b.removeSession(s.deviceID)
	s.b.logger.Info("session ended", "device", s.deviceID)
}

// discoveryCaps derives the advertised capability set from a snapshot.
func discoveryCaps(name string, state mug.State) discovery.Capabilities {
	if name == "" {
		name = "Ember Mug"
	}
	return discovery.Capabilities{
		Name:          name,
		Metric:        !state.Fahrenheit,
		LiquidPresent: state.LiquidPresent(),
	}
}
