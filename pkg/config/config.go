// Package config loads and validates the YAML server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rafalohaki/ultramotd/pkg/cache"
	"github.com/rafalohaki/ultramotd/pkg/ratelimit"
	"github.com/rafalohaki/ultramotd/pkg/rotation"
)

// Duration wraps time.Duration with YAML support for values like "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root of the configuration file.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	MOTD struct {
		VersionName     string   `yaml:"version_name"`
		DefaultProtocol int32    `yaml:"default_protocol"`
		MaxPlayers      int      `yaml:"max_players"`
		OnlinePlayers   int      `yaml:"online_players"`
		Messages        []string `yaml:"messages"`
		Favicon         string   `yaml:"favicon"`
		DataDir         string   `yaml:"data_dir"`
	} `yaml:"motd"`

	Rotation struct {
		Strategy            string   `yaml:"strategy"`
		Interval            Duration `yaml:"interval"`
		RequestsPerRotation int      `yaml:"requests_per_rotation"`
	} `yaml:"rotation"`

	Cache struct {
		PacketTTL Duration `yaml:"packet_ttl"`
	} `yaml:"cache"`

	RateLimit struct {
		Enabled bool     `yaml:"enabled"`
		Limit   int      `yaml:"limit"`
		Window  Duration `yaml:"window"`
	} `yaml:"ratelimit"`

	Monitor struct {
		Enabled        bool     `yaml:"enabled"`
		Interval       Duration `yaml:"interval"`
		HitRateWarning float64  `yaml:"hit_rate_warning"`
	} `yaml:"monitor"`

	Redis struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"redis"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{ListenAddr: ":25565"}
	cfg.Log.Level = "info"
	cfg.MOTD.VersionName = "UltraMOTD"
	cfg.MOTD.DefaultProtocol = 767
	cfg.MOTD.MaxPlayers = 100
	cfg.MOTD.DataDir = "."
	cfg.Rotation.Strategy = "sequential"
	cfg.Rotation.Interval = Duration(30 * time.Second)
	cfg.Rotation.RequestsPerRotation = 10
	cfg.Cache.PacketTTL = Duration(cache.DefaultPacketTTL)
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Limit = 10
	cfg.RateLimit.Window = Duration(ratelimit.DefaultWindow)
	cfg.Monitor.Enabled = true
	cfg.Monitor.Interval = Duration(time.Minute)
	cfg.Monitor.HitRateWarning = 0.5
	cfg.Redis.Addr = "localhost:6379"
	cfg.Metrics.Addr = ":9100"
	return cfg
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field a constructor downstream would reject, so
// misconfiguration surfaces at startup with a file-oriented message.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.MOTD.VersionName == "" {
		return fmt.Errorf("config: motd.version_name must not be empty")
	}
	if c.MOTD.MaxPlayers <= 0 {
		return fmt.Errorf("config: motd.max_players must be positive, got %d", c.MOTD.MaxPlayers)
	}
	if c.MOTD.OnlinePlayers < 0 {
		return fmt.Errorf("config: motd.online_players must not be negative, got %d", c.MOTD.OnlinePlayers)
	}

	strategy, err := rotation.ParseStrategy(c.Rotation.Strategy)
	if err != nil {
		return fmt.Errorf("config: rotation.strategy: %w", err)
	}
	if strategy == rotation.TimeBased && c.Rotation.Interval <= 0 {
		return fmt.Errorf("config: rotation.interval must be positive for the time-based strategy")
	}
	if strategy == rotation.RequestBased && c.Rotation.RequestsPerRotation <= 0 {
		return fmt.Errorf("config: rotation.requests_per_rotation must be positive, got %d", c.Rotation.RequestsPerRotation)
	}

	if c.Cache.PacketTTL <= 0 {
		return fmt.Errorf("config: cache.packet_ttl must be positive, got %s", c.Cache.PacketTTL.Std())
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return fmt.Errorf("config: ratelimit.limit must be positive, got %d", c.RateLimit.Limit)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("config: ratelimit.window must be positive, got %s", c.RateLimit.Window.Std())
		}
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("config: monitor.interval must be positive, got %s", c.Monitor.Interval.Std())
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr must not be empty when redis is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("config: metrics.addr must not be empty when metrics are enabled")
	}
	return nil
}

// Strategy returns the parsed rotation strategy. Call Validate first.
func (c *Config) Strategy() rotation.Strategy {
	strategy, _ := rotation.ParseStrategy(c.Rotation.Strategy)
	return strategy
}
