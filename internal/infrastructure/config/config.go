package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for spbnode.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Sparkplug   SparkplugConfig   `yaml:"sparkplug"`
	Metrics     []MetricConfig    `yaml:"metrics"`
	Publisher   PublisherConfig   `yaml:"publisher"`
	Journal     JournalConfig     `yaml:"journal"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Status      StatusConfig      `yaml:"status"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	QoS    int              `yaml:"qos"`
	// KeepAlive is the keepalive interval in seconds.
	KeepAlive int `yaml:"keepalive"`
	// ConnectTimeout bounds the CONNECT handshake, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// CredentialsConfig locates the broker credentials.
type CredentialsConfig struct {
	// SecretsFile is a two-line file: username, then password.
	// Empty means connect anonymously.
	SecretsFile string `yaml:"secrets_file"`
}

// SparkplugConfig identifies the edge node in the Sparkplug topic namespace.
type SparkplugConfig struct {
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
	Node      string `yaml:"node"`
}

// MetricConfig declares one metric of the node.
type MetricConfig struct {
	Name string `yaml:"name"`
	// Type is one of int32, float or string.
	Type string `yaml:"type"`
	// Initial is the birth value. Nil means the datatype default.
	Initial any `yaml:"initial,omitempty"`
}

// PublisherConfig controls the periodic data publisher.
type PublisherConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Count is the number of data messages to send. 0 runs until shutdown.
	Count int `yaml:"count"`
}

// JournalConfig contains settings for the SQLite message journal.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusConfig contains the status HTTP server settings.
type StatusConfig struct {
	Enabled  bool                `yaml:"enabled"`
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts StatusTimeoutConfig `yaml:"timeouts"`
}

// StatusTimeoutConfig contains HTTP timeout settings in seconds.
type StatusTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SPBNODE_SECTION_KEY
// For example: SPBNODE_MQTT_HOST, SPBNODE_JOURNAL_PATH
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The metric set matches the demo node: a string message, an integer
// counter and a float reading.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:            0,
			KeepAlive:      int(DefaultKeepAlive / time.Second),
			ConnectTimeout: int(DefaultConnectTimeout / time.Second),
		},
		Credentials: CredentialsConfig{
			SecretsFile: "secrets.txt",
		},
		Sparkplug: SparkplugConfig{
			Namespace: "spBv1.0",
			Group:     "test_group",
			Node:      "test_node",
		},
		Metrics: []MetricConfig{
			{Name: "string_message", Type: "string"},
			{Name: "int_message", Type: "int32"},
			{Name: "float_message", Type: "float"},
		},
		Publisher: PublisherConfig{
			Interval: time.Second,
			Count:    10,
		},
		Journal: JournalConfig{
			Enabled:     true,
			Path:        "./data/spbnode.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Status: StatusConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: StatusTimeoutConfig{
				Read:  int(DefaultStatusTimeout / time.Second),
				Write: int(DefaultStatusTimeout / time.Second),
				Idle:  int(DefaultStatusIdle / time.Second),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SPBNODE_SECTION_KEY
// Unparseable numeric values are ignored and left for Validate to judge.
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("SPBNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SPBNODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SPBNODE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}

	// Credentials
	if v := os.Getenv("SPBNODE_SECRETS_FILE"); v != "" {
		cfg.Credentials.SecretsFile = v
	}

	// Journal
	if v := os.Getenv("SPBNODE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// InfluxDB
	if v := os.Getenv("SPBNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SPBNODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected so a single run reports every mistake.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keepalive must not be negative")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}

	// Sparkplug identity
	for _, id := range []struct{ key, value string }{
		{"sparkplug.group", c.Sparkplug.Group},
		{"sparkplug.node", c.Sparkplug.Node},
	} {
		switch {
		case id.value == "":
			errs = append(errs, id.key+" is required")
		case strings.ContainsAny(id.value, "/+#"):
			errs = append(errs, id.key+" must not contain '/', '+' or '#'")
		}
	}

	// Metrics
	if len(c.Metrics) == 0 {
		errs = append(errs, "metrics must declare at least one metric")
	}
	seen := make(map[string]bool, len(c.Metrics))
	for i, m := range c.Metrics {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("metrics[%d].name is required", i))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Sprintf("metrics[%d].name %q is duplicated", i, m.Name))
		}
		seen[m.Name] = true
		if m.Type == "" {
			errs = append(errs, fmt.Sprintf("metrics[%d].type is required", i))
		}
	}

	// Publisher
	if c.Publisher.Interval <= 0 {
		errs = append(errs, "publisher.interval must be positive")
	}
	if c.Publisher.Count < 0 {
		errs = append(errs, "publisher.count must not be negative")
	}

	// Journal
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when journal is enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Status server
	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Fallbacks applied by the duration accessors when a field is unset or
// non-positive.
const (
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultStatusTimeout  = 10 * time.Second
	DefaultStatusIdle     = 60 * time.Second
)

// KeepAliveDuration returns the MQTT keepalive, or DefaultKeepAlive when unset.
func (m MQTTConfig) KeepAliveDuration() time.Duration {
	return seconds(m.KeepAlive, DefaultKeepAlive)
}

// ConnectTimeoutDuration returns the MQTT connect timeout, or
// DefaultConnectTimeout when unset.
func (m MQTTConfig) ConnectTimeoutDuration() time.Duration {
	return seconds(m.ConnectTimeout, DefaultConnectTimeout)
}

// ReadTimeout returns the status server read timeout.
func (s StatusConfig) ReadTimeout() time.Duration {
	return seconds(s.Timeouts.Read, DefaultStatusTimeout)
}

// WriteTimeout returns the status server write timeout.
func (s StatusConfig) WriteTimeout() time.Duration {
	return seconds(s.Timeouts.Write, DefaultStatusTimeout)
}

// IdleTimeout returns the status server keep-alive idle timeout.
func (s StatusConfig) IdleTimeout() time.Duration {
	return seconds(s.Timeouts.Idle, DefaultStatusIdle)
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
