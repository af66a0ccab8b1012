package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultPort = 3141

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type BridgeConfig struct {
	URL          string `json:"url"`
	RetryDelayMS int    `json:"retryDelayMs"`
}

// RetryDelay returns the reconnect delay, or 3s when unset.
func (b BridgeConfig) RetryDelay() time.Duration {
	if b.RetryDelayMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(b.RetryDelayMS) * time.Millisecond
}

// EventURL derives the relay's ingest endpoint from the websocket URL.
func (b BridgeConfig) EventURL() string {
	u := b.URL
	switch {
	case strings.HasPrefix(u, "wss://"):
		u = "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		u = "http://" + strings.TrimPrefix(u, "ws://")
	}
	u = strings.TrimSuffix(u, "/ws")
	return strings.TrimSuffix(u, "/") + "/event"
}

type Config struct {
	Server   ServerConfig `json:"server"`
	Bridge   BridgeConfig `json:"bridge"`
	LogDir   string       `json:"logDir"`
	LogLevel string       `json:"logLevel"`
}

func Defaults() Config {
	return Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: DefaultPort},
		Bridge:   BridgeConfig{URL: fmt.Sprintf("ws://localhost:%d", DefaultPort), RetryDelayMS: 3000},
		LogDir:   filepath.Join(Dir(), "logs"),
		LogLevel: "info",
	}
}

// Dir is the per-user state directory.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-office")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from PORT and AGENT_OFFICE_WS_URL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Server.Port = port
	}
	if v := getenv("AGENT_OFFICE_WS_URL"); v != "" {
		c.Bridge.URL = v
	}
	return nil
}
