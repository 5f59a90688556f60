package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hearthware/emberbridge/internal/infrastructure/config"
	"github.com/hearthware/emberbridge/internal/infrastructure/database"
)

type mockSessions struct {
	devices []string
}

func (m mockSessions) ConnectedDevices() []string { return m.devices }

type mockChecker struct {
	err error
}

func (m mockChecker) HealthCheck(context.Context) error { return m.err }

type mockStore struct {
	devices []database.PairedDevice
	err     error
}

func (m mockStore) ListPairedDevices(context.Context) ([]database.PairedDevice, error) {
	return m.devices, m.err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Sessions == nil {
		deps.Sessions = mockSessions{}
	}
	deps.Config = config.APIConfig{Host: "127.0.0.1", Port: 0}

	s, err := New(deps)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func TestNewRequiresSessions(t *testing.T) {
	_, err := New(Deps{Logger: nopLogger{}})
	if err == nil {
		t.Fatal("expected error without session source")
	}
}

func TestHealthAllOK(t *testing.T) {
	s := newTestServer(t, Deps{
		Sessions: mockSessions{devices: []string{"AA:BB:CC:DD:EE:FF"}},
		Checks: map[string]HealthChecker{
			"mqtt":     mockChecker{},
			"database": mockChecker{},
		},
		Version: "test",
	})

	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
	if resp.Checks["mqtt"] != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected checks: %v", resp.Checks)
	}
	if len(resp.Sessions) != 1 {
		t.Errorf("expected one session, got %v", resp.Sessions)
	}
}

func TestHealthDegradedOnFailingCheck(t *testing.T) {
	s := newTestServer(t, Deps{
		Checks: map[string]HealthChecker{
			"mqtt": mockChecker{err: errors.New("broker unreachable")},
		},
	})

	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded status, got %s", resp.Status)
	}
	if resp.Checks["mqtt"] != "broker unreachable" {
		t.Errorf("expected check error message, got %q", resp.Checks["mqtt"])
	}
}

func TestListDevicesMarksConnected(t *testing.T) {
	paired := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestServer(t, Deps{
		Sessions: mockSessions{devices: []string{"AA:BB:CC:DD:EE:FF"}},
		Store: mockStore{devices: []database.PairedDevice{
			{Address: "AA:BB:CC:DD:EE:FF", Name: "Office Mug", PairedAt: paired, LastSeen: paired},
			{Address: "11:22:33:44:55:66", Name: "Kitchen Mug", PairedAt: paired, LastSeen: paired},
		}},
	})

	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []DeviceSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(out))
	}
	if !out[0].Connected || out[1].Connected {
		t.Errorf("expected only the first device connected: %+v", out)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "emberbridge_test_total"})
	reg.MustRegister(counter)
	counter.Inc()

	s := newTestServer(t, Deps{Gatherer: reg})

	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "emberbridge_test_total") {
		t.Errorf("expected registered metric in scrape output")
	}
}
