// Package config loads host configuration from a yaml file with environment
// overrides. Reference values match the shipped desktop app.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml values can be written as "3s", "500ms".
type Duration time.Duration

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

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Host struct {
		Name string `yaml:"name"`
	} `yaml:"host"`
	Session struct {
		Port int `yaml:"port"`
	} `yaml:"session"`
	Discovery struct {
		Port     int      `yaml:"port"`
		Interval Duration `yaml:"interval"`
	} `yaml:"discovery"`
	OTP struct {
		Rotation Duration `yaml:"rotation"`
	} `yaml:"otp"`
	Heartbeat struct {
		Tick         Duration `yaml:"tick"`
		PingAfter    Duration `yaml:"ping_after"`
		TimeoutAfter Duration `yaml:"timeout_after"`
	} `yaml:"heartbeat"`
	Scan struct {
		Window Duration `yaml:"window"`
	} `yaml:"scan"`
}

// Default returns the reference configuration.
func Default() Config {
	var c Config
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "MobControl PC"
	}
	c.Host.Name = hostname
	c.Session.Port = 8181
	c.Discovery.Port = 15000
	c.Discovery.Interval = Duration(3 * time.Second)
	c.OTP.Rotation = Duration(30 * time.Second)
	c.Heartbeat.Tick = Duration(1 * time.Second)
	c.Heartbeat.PingAfter = Duration(3 * time.Second)
	c.Heartbeat.TimeoutAfter = Duration(10 * time.Second)
	c.Scan.Window = Duration(4 * time.Second)
	return c
}

// Load reads the config file at path over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MOBCONTROL_HOST_NAME"); v != "" {
		c.Host.Name = v
	}
	c.Session.Port = getEnvAsInt("MOBCONTROL_SESSION_PORT", c.Session.Port)
	c.Discovery.Port = getEnvAsInt("MOBCONTROL_DISCOVERY_PORT", c.Discovery.Port)
}

func (c Config) Validate() error {
	if c.Session.Port <= 0 || c.Session.Port > 65535 {
		return fmt.Errorf("invalid session port %d", c.Session.Port)
	}
	if c.Discovery.Port <= 0 || c.Discovery.Port > 65535 {
		return fmt.Errorf("invalid discovery port %d", c.Discovery.Port)
	}
	if c.Heartbeat.PingAfter >= c.Heartbeat.TimeoutAfter {
		return fmt.Errorf("heartbeat ping_after (%s) must be shorter than timeout_after (%s)",
			c.Heartbeat.PingAfter.Std(), c.Heartbeat.TimeoutAfter.Std())
	}
	if c.Heartbeat.Tick <= 0 || c.Discovery.Interval <= 0 || c.OTP.Rotation <= 0 || c.Scan.Window <= 0 {
		return fmt.Errorf("all intervals must be positive")
	}
	return nil
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
