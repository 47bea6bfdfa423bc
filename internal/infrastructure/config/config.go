package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for paramsync.
// Configuration is loaded from an optional YAML file and can be overridden by
// environment variables and command-line flags.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Client    ClientConfig    `yaml:"client"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SerialConfig contains the ESP32 serial link settings.
type SerialConfig struct {
	Enabled bool `yaml:"enabled"`

	// Port is the serial device. Empty means auto-detect.
	Port string `yaml:"port"`

	BaudRate int `yaml:"baud_rate"`

	// ReconnectDelay is the wait between connection attempts, in seconds.
	ReconnectDelay int `yaml:"reconnect_delay"`
}

// ServerConfig contains the HTTP listener settings. The WebSocket endpoint,
// status API and metrics share this listener.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket endpoint settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	SendBufferSize int    `yaml:"send_buffer_size"`
}

// ClientConfig contains settings for the client role, where this process
// connects out to a bridge or relay.
type ClientConfig struct {
	// URL skips discovery when set. WEBSOCKET_URL overrides it.
	URL string `yaml:"url"`

	// Port is used for synthesised discovery candidates.
	Port int `yaml:"port"`

	// DialTimeout is the per-candidate connect timeout, in seconds.
	DialTimeout int `yaml:"dial_timeout"`

	// WriteTimeoutMS bounds a single send before it falls back to the queue.
	WriteTimeoutMS int `yaml:"write_timeout_ms"`

	// RetryDelay is the pause before rediscovery after a disconnect, in seconds.
	RetryDelay int `yaml:"retry_delay"`
}

// MQTTConfig contains MQTT broker connection settings for the state mirror.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, if path is non-empty
//  3. Environment variables
//
// Environment variables follow the pattern PARAMSYNC_SECTION_KEY, for example
// PARAMSYNC_SERIAL_PORT. WEBSOCKET_URL sets client.url.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

// Default returns a Config with the stock settings.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Enabled:        true,
			BaudRate:       115200,
			ReconnectDelay: 5,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8765,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/",
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
			SendBufferSize: 256,
		},
		Client: ClientConfig{
			Port:           8765,
			DialTimeout:    3,
			WriteTimeoutMS: 100,
			RetryDelay:     5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "paramsync",
			},
			QoS:         1,
			TopicPrefix: "paramsync",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Serial
	if v := os.Getenv("PARAMSYNC_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v, ok := envInt("PARAMSYNC_SERIAL_BAUD_RATE"); ok {
		cfg.Serial.BaudRate = v
	}
	if v, ok := envBool("PARAMSYNC_SERIAL_ENABLED"); ok {
		cfg.Serial.Enabled = v
	}

	// Server
	if v := os.Getenv("PARAMSYNC_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v, ok := envInt("PARAMSYNC_SERVER_PORT"); ok {
		cfg.Server.Port = v
	}

	// Client
	if v := os.Getenv("WEBSOCKET_URL"); v != "" {
		cfg.Client.URL = v
	}

	// MQTT
	if v, ok := envBool("PARAMSYNC_MQTT_ENABLED"); ok {
		cfg.MQTT.Enabled = v
	}
	if v := os.Getenv("PARAMSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PARAMSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PARAMSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Logging
	if v := os.Getenv("PARAMSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Serial.Enabled {
		if c.Serial.BaudRate <= 0 {
			errs = append(errs, "serial.baud_rate must be positive")
		}
		if c.Serial.ReconnectDelay <= 0 {
			errs = append(errs, "serial.reconnect_delay must be positive")
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, "websocket.max_message_size must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0 {
		errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be positive")
	}

	if c.Client.URL != "" && !strings.HasPrefix(c.Client.URL, "ws://") && !strings.HasPrefix(c.Client.URL, "wss://") {
		errs = append(errs, "client.url must be a ws:// or wss:// URL")
	}
	if c.Client.DialTimeout <= 0 {
		errs = append(errs, "client.dial_timeout must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.WebSocket.Path {
		errs = append(errs, "metrics.path must differ from websocket.path")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetReconnectDelay returns the serial reconnect delay as a Duration.
func (c *Config) GetReconnectDelay() time.Duration {
	return time.Duration(c.Serial.ReconnectDelay) * time.Second
}

// GetDialTimeout returns the client per-candidate dial timeout.
func (c *Config) GetDialTimeout() time.Duration {
	return time.Duration(c.Client.DialTimeout) * time.Second
}

// GetClientWriteTimeout returns the client send timeout.
func (c *Config) GetClientWriteTimeout() time.Duration {
	return time.Duration(c.Client.WriteTimeoutMS) * time.Millisecond
}

// GetRetryDelay returns the client rediscovery delay.
func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.Client.RetryDelay) * time.Second
}
