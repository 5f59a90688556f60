package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Ember bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	Devices   DevicesConfig   `yaml:"devices"`
	Ownership OwnershipConfig `yaml:"ownership"`
	Pairing   PairingConfig   `yaml:"pairing"`
}

// InstanceConfig identifies this bridge instance on the shared broker.
type InstanceConfig struct {
	// ID is the bridge instance identifier used in claim topics and
	// ownership tie-breaking. Must be unique per running bridge.
	// If empty, the hostname is used.
	ID string `yaml:"id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DiscoveryConfig contains Home Assistant autodiscovery settings.
type DiscoveryConfig struct {
	// Prefix is the autodiscovery topic prefix consumed by the
	// home-automation platform. Default: "homeassistant".
	Prefix string `yaml:"prefix"`
}

// DatabaseConfig contains SQLite database settings for the paired-device store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains optional temperature telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig contains the health/metrics HTTP listener settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DevicesConfig contains per-device connection and polling policy.
// These are deliberately configuration rather than hard-coded constants;
// the defaults are documented in configs/config.yaml.
type DevicesConfig struct {
	// PollInterval is the seconds between poll cycles while Connected.
	PollInterval int `yaml:"poll_interval"`

	// ConnectTimeout is the seconds allowed for a single connect attempt.
	ConnectTimeout int `yaml:"connect_timeout"`

	// MaxConnectRetries bounds reconnect attempts before the device
	// returns to Idle and ownership is released.
	MaxConnectRetries int `yaml:"max_connect_retries"`

	// BackoffInitial and BackoffMax bound the exponential reconnect
	// backoff (seconds). Jitter of ±20% is applied.
	BackoffInitial int `yaml:"backoff_initial"`
	BackoffMax     int `yaml:"backoff_max"`
}

// OwnershipConfig contains distributed ownership lease policy.
type OwnershipConfig struct {
	// LeaseTTL is the lease lifetime in seconds. A lease must be renewed
	// at least once per TTL/2; an expired lease is equivalent to none.
	LeaseTTL int `yaml:"lease_ttl"`

	// ConflictBackoffMax is the upper bound in seconds of the random
	// backoff applied after losing a claim tie-break.
	ConflictBackoffMax int `yaml:"conflict_backoff_max"`
}

// PairingConfig contains pairing-mode scan settings.
type PairingConfig struct {
	// CandidateTimeout is the seconds a pairing candidate is kept without
	// a claim before being discarded.
	CandidateTimeout int `yaml:"candidate_timeout"`

	// ScanInterval is the seconds between advertisement scan cycles.
	ScanInterval int `yaml:"scan_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EMBERBRIDGE_SECTION_KEY
// For example: EMBERBRIDGE_MQTT_HOST, EMBERBRIDGE_INSTANCE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Instance.ID == "" {
		host, hostErr := os.Hostname()
		if hostErr != nil {
			return nil, fmt.Errorf("instance.id unset and hostname unavailable: %w", hostErr)
		}
		cfg.Instance.ID = host
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "emberbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Discovery: DiscoveryConfig{
			Prefix: "homeassistant",
		},
		Database: DatabaseConfig{
			Path:        "./data/emberbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9187,
		},
		Devices: DevicesConfig{
			PollInterval:      10,
			ConnectTimeout:    20,
			MaxConnectRetries: 3,
			BackoffInitial:    1,
			BackoffMax:        30,
		},
		Ownership: OwnershipConfig{
			LeaseTTL:           30,
			ConflictBackoffMax: 3,
		},
		Pairing: PairingConfig{
			CandidateTimeout: 120,
			ScanInterval:     15,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EMBERBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMBERBRIDGE_INSTANCE_ID"); v != "" {
		cfg.Instance.ID = v
	}

	// MQTT
	if v := os.Getenv("EMBERBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EMBERBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EMBERBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("EMBERBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("EMBERBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Instance.ID == "" {
		errs = append(errs, "instance.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Ownership.LeaseTTL < 1 {
		errs = append(errs, "ownership.lease_ttl must be at least 1 second")
	}

	if c.Devices.PollInterval < 1 {
		errs = append(errs, "devices.poll_interval must be at least 1 second")
	}

	// Leases are renewed on each poll cycle, so the poll interval must
	// fit inside half the TTL or healthy leases would be seen expiring.
	if c.Devices.PollInterval > c.Ownership.LeaseTTL/2 {
		errs = append(errs, "devices.poll_interval must not exceed half of ownership.lease_ttl")
	}

	if c.Devices.MaxConnectRetries < 1 {
		errs = append(errs, "devices.max_connect_retries must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the device poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Devices.PollInterval) * time.Second
}

// ConnectTimeout returns the per-attempt connect timeout as a Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Devices.ConnectTimeout) * time.Second
}

// LeaseTTL returns the ownership lease TTL as a Duration.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Ownership.LeaseTTL) * time.Second
}

// CandidateTimeout returns the pairing candidate timeout as a Duration.
func (c *Config) CandidateTimeout() time.Duration {
	return time.Duration(c.Pairing.CandidateTimeout) * time.Second
}

// ScanInterval returns the advertisement scan interval as a Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Pairing.ScanInterval) * time.Second
}

// BackoffInitial returns the initial reconnect backoff as a Duration.
func (c *Config) BackoffInitial() time.Duration {
	return time.Duration(c.Devices.BackoffInitial) * time.Second
}

// BackoffMax returns the reconnect backoff cap as a Duration.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Devices.BackoffMax) * time.Second
}

// ConflictBackoffMax returns the post-conflict claim backoff cap as a
// Duration.
func (c *Config) ConflictBackoffMax() time.Duration {
	return time.Duration(c.Ownership.ConflictBackoffMax) * time.Second
}
