package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
serial:
  port: "/dev/ttyUSB0"
  baud_rate: 230400
server:
  host: "127.0.0.1"
  port: 9000
websocket:
  path: "/ws"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Errorf("Serial.Port = %q, want %q", cfg.Serial.Port, "/dev/ttyUSB0")
	}
	if cfg.Serial.BaudRate != 230400 {
		t.Errorf("Serial.BaudRate = %d, want 230400", cfg.Serial.BaudRate)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "127.0.0.1:9000")
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want %q", cfg.WebSocket.Path, "/ws")
	}
	// Unspecified values keep their defaults.
	if cfg.WebSocket.PingInterval != 30 {
		t.Errorf("WebSocket.PingInterval = %d, want 30", cfg.WebSocket.PingInterval)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want 8765", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg, err := LoadOptional("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOptional() error = %v", err)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("Serial.BaudRate = %d, want 115200", cfg.Serial.BaudRate)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("serial: [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "bad baud rate",
			modify:  func(c *Config) { c.Serial.BaudRate = 0 },
			wantErr: "serial.baud_rate",
		},
		{
			name: "baud rate ignored when serial disabled",
			modify: func(c *Config) {
				c.Serial.Enabled = false
				c.Serial.BaudRate = 0
			},
		},
		{
			name:    "client url scheme",
			modify:  func(c *Config) { c.Client.URL = "http://example" },
			wantErr: "client.url",
		},
		{
			name: "mqtt qos",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:    "metrics path clash",
			modify:  func(c *Config) { c.Metrics.Path = "/" },
			wantErr: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.WebSocket.Path = "ws"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	for _, want := range []string{"server.port", "websocket.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := Default()

	if got := cfg.GetReconnectDelay(); got != 5*time.Second {
		t.Errorf("GetReconnectDelay() = %v, want 5s", got)
	}
	if got := cfg.GetDialTimeout(); got != 3*time.Second {
		t.Errorf("GetDialTimeout() = %v, want 3s", got)
	}
	if got := cfg.GetClientWriteTimeout(); got != 100*time.Millisecond {
		t.Errorf("GetClientWriteTimeout() = %v, want 100ms", got)
	}
	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PARAMSYNC_SERIAL_PORT", "COM7")
	t.Setenv("PARAMSYNC_SERIAL_BAUD_RATE", "9600")
	t.Setenv("PARAMSYNC_SERVER_PORT", "9999")
	t.Setenv("PARAMSYNC_MQTT_ENABLED", "true")
	t.Setenv("WEBSOCKET_URL", "ws://10.0.0.5:8765")
	t.Setenv("PARAMSYNC_LOG_LEVEL", "debug")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Serial.Port != "COM7" {
		t.Errorf("Serial.Port = %q, want COM7", cfg.Serial.Port)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("Serial.BaudRate = %d, want 9600", cfg.Serial.BaudRate)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.Client.URL != "ws://10.0.0.5:8765" {
		t.Errorf("Client.URL = %q, want ws://10.0.0.5:8765", cfg.Client.URL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	t.Setenv("PARAMSYNC_SERVER_PORT", "not-a-number")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want default 8765", cfg.Server.Port)
	}
}
