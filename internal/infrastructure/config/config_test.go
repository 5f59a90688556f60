package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: bridge-a
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Discovery.Prefix != "homeassistant" {
		t.Errorf("discovery prefix = %q, want homeassistant", cfg.Discovery.Prefix)
	}
	if cfg.Ownership.LeaseTTL != 30 {
		t.Errorf("lease TTL = %d, want 30", cfg.Ownership.LeaseTTL)
	}
	if cfg.Devices.MaxConnectRetries != 3 {
		t.Errorf("max connect retries = %d, want 3", cfg.Devices.MaxConnectRetries)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: bridge-a
mqtt:
  broker:
    host: broker.local
    port: 8883
    tls: true
ownership:
  lease_ttl: 60
devices:
  poll_interval: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT host = %q, want broker.local", cfg.MQTT.Broker.Host)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("MQTT TLS should be enabled")
	}
	if cfg.LeaseTTL() != 60*time.Second {
		t.Errorf("LeaseTTL() = %v, want 60s", cfg.LeaseTTL())
	}
	if cfg.PollInterval() != 20*time.Second {
		t.Errorf("PollInterval() = %v, want 20s", cfg.PollInterval())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: from-file
mqtt:
  broker:
    host: from-file.local
`)

	t.Setenv("EMBERBRIDGE_INSTANCE_ID", "from-env")
	t.Setenv("EMBERBRIDGE_MQTT_HOST", "from-env.local")
	t.Setenv("EMBERBRIDGE_MQTT_PASSWORD", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Instance.ID != "from-env" {
		t.Errorf("instance ID = %q, want from-env", cfg.Instance.ID)
	}
	if cfg.MQTT.Broker.Host != "from-env.local" {
		t.Errorf("MQTT host = %q, want from-env.local", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Password != "hunter2" {
		t.Errorf("MQTT password not overridden from environment")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "poll interval exceeds half TTL",
			mutate: func(c *Config) {
				c.Ownership.LeaseTTL = 10
				c.Devices.PollInterval = 6
			},
			wantErr: "poll_interval",
		},
		{
			name:    "zero lease ttl",
			mutate:  func(c *Config) { c.Ownership.LeaseTTL = 0 },
			wantErr: "lease_ttl",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Devices.MaxConnectRetries = 0 },
			wantErr: "max_connect_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Instance.ID = "bridge-a"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
