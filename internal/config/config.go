package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8390
	DefaultStoreURL     = "http://localhost:8390"
	DefaultPollInterval = "1m"
	DefaultTimeoutSecs  = 15
)

type Config struct {
	Store     StoreConfig     `json:"store"`
	Server    ServerConfig    `json:"server"`
	Dashboard DashboardConfig `json:"dashboard"`
}

// StoreConfig points the adapter at the remote task store.
type StoreConfig struct {
	BaseURL     string `json:"baseUrl"`
	APIKey      string `json:"apiKey,omitempty"`
	Realtime    bool   `json:"realtime"`
	TimeoutSecs int    `json:"timeoutSecs,omitempty"`
}

// ServerConfig configures the bundled store server (`taskmate serve`).
type ServerConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	DBPath string `json:"dbPath,omitempty"`
	APIKey string `json:"apiKey,omitempty"`
}

type DashboardConfig struct {
	// PollInterval is the refresh cadence used when the realtime feed is
	// unavailable. Go duration string, e.g. "30s".
	PollInterval string `json:"pollInterval"`
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			BaseURL:     DefaultStoreURL,
			Realtime:    true,
			TimeoutSecs: DefaultTimeoutSecs,
		},
		Server: ServerConfig{
			Host:   DefaultHost,
			Port:   DefaultPort,
			DBPath: filepath.Join(ConfigDir(), "data", "tasks.db"),
		},
		Dashboard: DashboardConfig{
			PollInterval: DefaultPollInterval,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".taskmate")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if url := os.Getenv("TASKMATE_STORE_URL"); url != "" {
		cfg.Store.BaseURL = url
	}
	if key := os.Getenv("TASKMATE_API_KEY"); key != "" {
		cfg.Store.APIKey = key
		if cfg.Server.APIKey == "" {
			cfg.Server.APIKey = key
		}
	}
	if v := os.Getenv("TASKMATE_REALTIME"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Store.Realtime = parsed
		}
	}
	if host := os.Getenv("TASKMATE_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("TASKMATE_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if path := os.Getenv("TASKMATE_DB_PATH"); path != "" {
		cfg.Server.DBPath = path
	}
	if v := os.Getenv("TASKMATE_POLL_INTERVAL"); v != "" {
		cfg.Dashboard.PollInterval = v
	}

	if cfg.Store.BaseURL == "" {
		cfg.Store.BaseURL = DefaultStoreURL
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = DefaultConfig().Server.DBPath
	}
	if cfg.Dashboard.PollInterval == "" {
		cfg.Dashboard.PollInterval = DefaultPollInterval
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

// PollInterval parses the dashboard poll cadence, falling back to the
// default on malformed values.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Dashboard.PollInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultPollInterval)
	}
	return d
}

// StoreTimeout returns the per-request adapter timeout.
func (c *Config) StoreTimeout() time.Duration {
	if c.Store.TimeoutSecs <= 0 {
		return DefaultTimeoutSecs * time.Second
	}
	return time.Duration(c.Store.TimeoutSecs) * time.Second
}
