package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the media state bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Host      HostConfig      `yaml:"host"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Journal   JournalConfig   `yaml:"journal"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies the physical device on the broker.
type DeviceConfig struct {
	// ID must be unique per device sharing a broker namespace. Every topic is
	// derived from it, so changing it orphans retained discovery entries.
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Manufacturer    string `yaml:"manufacturer"`
	Namespace       string `yaml:"namespace"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	FieldSensors    bool   `yaml:"field_sensors"`
	StateFormat     string `yaml:"state_format"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker          MQTTBrokerConfig    `yaml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth"`
	KeepAlive       int                 `yaml:"keep_alive"`
	ConnectTimeout  int                 `yaml:"connect_timeout"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect"`
	StartRetryDelay int                 `yaml:"start_retry_delay"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	TLS            bool   `yaml:"tls"`
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// Interval is the fixed delay between reconnect attempts, in seconds.
	Interval int `yaml:"interval"`
}

// HostConfig selects where foreground-app notifications come from.
type HostConfig struct {
	Source string      `yaml:"source"`
	Luna   LunaConfig  `yaml:"luna"`
	MPRIS  MPRISConfig `yaml:"mpris"`
}

// LunaConfig configures the luna-send subscription subprocess.
type LunaConfig struct {
	Binary       string `yaml:"binary"`
	URI          string `yaml:"uri"`
	RestartDelay int    `yaml:"restart_delay"`
}

// MPRISConfig configures the D-Bus MPRIS source.
type MPRISConfig struct {
	PlayerPrefix string `yaml:"player_prefix"`
}

// LifecycleConfig configures the keep-alive capability that stops the host
// from suspending the process.
type LifecycleConfig struct {
	Mode string `yaml:"mode"`
	Who  string `yaml:"who"`
	Why  string `yaml:"why"`
}

// JournalConfig configures the in-memory operational log.
type JournalConfig struct {
	Capacity        int `yaml:"capacity"`
	InlineThreshold int `yaml:"inline_threshold"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Host event sources.
const (
	SourceLuna    = "luna"
	SourceMPRIS   = "mpris"
	SourceWebhook = "webhook"
)

// Lifecycle modes.
const (
	LifecycleLogind = "logind"
	LifecycleNone   = "none"
)

// State payload formats.
const (
	StateFormatJSON  = "json"
	StateFormatPlain = "plain"
)

// Bounds for connection timing. Keep-alive has to ride out TV sleep/wake
// cycles; the connect timeout stays in the low seconds.
const (
	minKeepAlive      = 30
	maxKeepAlive      = 600
	minConnectTimeout = 1
	maxConnectTimeout = 10
)

// deviceIDPattern restricts device IDs to characters that are safe inside
// MQTT topic levels and Home Assistant unique IDs.
var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MEDIABRIDGE_SECTION_KEY
// For example: MEDIABRIDGE_MQTT_HOST, MEDIABRIDGE_DEVICE_ID
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Manufacturer:    "LG",
			Namespace:       "LGTV2MQTT",
			DiscoveryPrefix: "homeassistant",
			FieldSensors:    true,
			StateFormat:     StateFormatJSON,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:           "localhost",
				Port:           1883,
				ClientIDPrefix: "mqtt",
			},
			KeepAlive:      180,
			ConnectTimeout: 4,
			Reconnect: MQTTReconnectConfig{
				Interval: 10,
			},
			StartRetryDelay: 10,
		},
		Host: HostConfig{
			Source: SourceLuna,
			Luna: LunaConfig{
				Binary:       "luna-send",
				URI:          "luna://com.webos.media/getForegroundAppInfo",
				RestartDelay: 5,
			},
			MPRIS: MPRISConfig{
				PlayerPrefix: "org.mpris.MediaPlayer2.",
			},
		},
		Lifecycle: LifecycleConfig{
			Mode: LifecycleLogind,
			Who:  "mediabridge",
			Why:  "keep broker connection alive",
		},
		Journal: JournalConfig{
			Capacity:        1000,
			InlineThreshold: 120,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
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
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MEDIABRIDGE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("MEDIABRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MEDIABRIDGE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEDIABRIDGE_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("MEDIABRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MEDIABRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MEDIABRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
// All problems are collected so a bad file can be fixed in one pass.
func (c *Config) Validate() error {
	var errs []string

	// Device
	switch {
	case c.Device.ID == "":
		errs = append(errs, "device.id is required (set MEDIABRIDGE_DEVICE_ID environment variable)")
	case !deviceIDPattern.MatchString(c.Device.ID):
		errs = append(errs, "device.id may only contain letters, digits, '_' and '-'")
	}
	if c.Device.Namespace == "" || strings.ContainsAny(c.Device.Namespace, "+#") {
		errs = append(errs, "device.namespace must be a non-empty topic level without wildcards")
	}
	if c.Device.DiscoveryPrefix == "" || strings.ContainsAny(c.Device.DiscoveryPrefix, "+#") {
		errs = append(errs, "device.discovery_prefix must be a non-empty topic level without wildcards")
	}
	if c.Device.StateFormat != StateFormatJSON && c.Device.StateFormat != StateFormatPlain {
		errs = append(errs, "device.state_format must be json or plain")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.KeepAlive < minKeepAlive || c.MQTT.KeepAlive > maxKeepAlive {
		errs = append(errs, fmt.Sprintf("mqtt.keep_alive must be between %d and %d seconds", minKeepAlive, maxKeepAlive))
	}
	if c.MQTT.ConnectTimeout < minConnectTimeout || c.MQTT.ConnectTimeout > maxConnectTimeout {
		errs = append(errs, fmt.Sprintf("mqtt.connect_timeout must be between %d and %d seconds", minConnectTimeout, maxConnectTimeout))
	}
	if c.MQTT.Reconnect.Interval < 1 {
		errs = append(errs, "mqtt.reconnect.interval must be at least 1 second")
	}
	if c.MQTT.StartRetryDelay < 1 {
		errs = append(errs, "mqtt.start_retry_delay must be at least 1 second")
	}

	// Host source
	switch c.Host.Source {
	case SourceLuna:
		if c.Host.Luna.Binary == "" || c.Host.Luna.URI == "" {
			errs = append(errs, "host.luna.binary and host.luna.uri are required for the luna source")
		}
	case SourceMPRIS, SourceWebhook:
	default:
		errs = append(errs, "host.source must be luna, mpris or webhook")
	}

	// Lifecycle
	if c.Lifecycle.Mode != LifecycleLogind && c.Lifecycle.Mode != LifecycleNone {
		errs = append(errs, "lifecycle.mode must be logind or none")
	}

	// Journal
	if c.Journal.Capacity < 1 {
		errs = append(errs, "journal.capacity must be at least 1")
	}
	if c.Journal.InlineThreshold < 0 {
		errs = append(errs, "journal.inline_threshold cannot be negative")
	}

	// API
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns host:port of the broker, for logging.
func (c MQTTConfig) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.Broker.Host, c.Broker.Port)
}

// KeepAliveDuration returns the MQTT keepalive as a Duration.
func (c MQTTConfig) KeepAliveDuration() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}

// ConnectTimeoutDuration returns the MQTT connect timeout as a Duration.
func (c MQTTConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// ReconnectInterval returns the fixed reconnect interval as a Duration.
func (c MQTTConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.Reconnect.Interval) * time.Second
}

// StartRetryDuration returns the delay between start attempts as a Duration.
func (c MQTTConfig) StartRetryDuration() time.Duration {
	return time.Duration(c.StartRetryDelay) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
