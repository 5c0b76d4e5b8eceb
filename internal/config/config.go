package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PushConfig holds settings for agent-initiated metrics push.
type PushConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIURL        string `yaml:"api_url"`
	APIKey        string `yaml:"api_key"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

// Config is the validated agent configuration.
type Config struct {
	NodeName       string
	LocalRPCPort   int
	MetricsPort    int
	CheckInterval  time.Duration
	ProbeTimeout   time.Duration
	PublicRPCURL   string
	CatchupCommand []string
	Push           PushConfig
}

const (
	defaultNodeName      = "unknown-node"
	defaultLocalRPCPort  = 8899
	defaultMetricsPort   = 9100
	defaultCheckInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second
	defaultPushRetries   = 3
)

// Load builds the configuration from an optional YAML file, an optional .env
// file in the working directory, and environment variables, in increasing
// order of precedence. Pass an empty path to skip the YAML file.
func Load(path string) (*Config, error) {
	// A missing .env is fine; it only exists on deployed nodes.
	_ = godotenv.Load()

	type rawConfig struct {
		NodeName       string     `yaml:"node_name"`
		LocalRPCPort   int        `yaml:"local_rpc_port"`
		MetricsPort    int        `yaml:"metrics_port"`
		CheckInterval  string     `yaml:"check_interval"`
		ProbeTimeout   string     `yaml:"probe_timeout"`
		PublicRPCURL   string     `yaml:"public_rpc_url"`
		CatchupCommand []string   `yaml:"catchup_command"`
		Push           PushConfig `yaml:"push"`
	}

	var raw rawConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg := &Config{
		NodeName:       raw.NodeName,
		LocalRPCPort:   raw.LocalRPCPort,
		MetricsPort:    raw.MetricsPort,
		PublicRPCURL:   raw.PublicRPCURL,
		CatchupCommand: raw.CatchupCommand,
		Push:           raw.Push,
	}

	var err error
	if cfg.CheckInterval, err = parseYAMLDuration(raw.CheckInterval, "check_interval"); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = parseYAMLDuration(raw.ProbeTimeout, "probe_timeout"); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAMLDuration(s, key string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

// applyEnv overlays environment variables onto cfg. Interval variables are
// plain integer seconds, matching the agent's .env surface.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("NODE_NAME"); v != "" {
		cfg.NodeName = v
	}
	if v := os.Getenv("PUBLIC_RPC_URL"); v != "" {
		cfg.PublicRPCURL = v
	}

	var err error
	if cfg.LocalRPCPort, err = envInt("LOCAL_RPC_PORT", cfg.LocalRPCPort); err != nil {
		return err
	}
	if cfg.MetricsPort, err = envInt("METRICS_PORT", cfg.MetricsPort); err != nil {
		return err
	}
	if cfg.CheckInterval, err = envSeconds("CHECK_INTERVAL", cfg.CheckInterval); err != nil {
		return err
	}
	if cfg.ProbeTimeout, err = envSeconds("PROBE_TIMEOUT", cfg.ProbeTimeout); err != nil {
		return err
	}

	if v := os.Getenv("ENABLE_PUSH_MODE"); v != "" {
		cfg.Push.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MONITORING_API_URL"); v != "" {
		cfg.Push.APIURL = v
	}
	if v := os.Getenv("MONITORING_API_KEY"); v != "" {
		cfg.Push.APIKey = v
	}
	if cfg.Push.RetryAttempts, err = envInt("PUSH_RETRY_ATTEMPTS", cfg.Push.RetryAttempts); err != nil {
		return err
	}
	return nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return time.Duration(n) * time.Second, nil
}

func applyDefaults(cfg *Config) {
	if cfg.NodeName == "" {
		cfg.NodeName = defaultNodeName
	}
	if cfg.LocalRPCPort == 0 {
		cfg.LocalRPCPort = defaultLocalRPCPort
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = defaultMetricsPort
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if len(cfg.CatchupCommand) == 0 {
		cfg.CatchupCommand = []string{
			"solana", "catchup", "--our-localhost", strconv.Itoa(cfg.LocalRPCPort),
		}
	}
	if cfg.Push.RetryAttempts == 0 {
		cfg.Push.RetryAttempts = defaultPushRetries
	}
}

func (c *Config) validate() error {
	if c.LocalRPCPort < 1 || c.LocalRPCPort > 65535 {
		return fmt.Errorf("local_rpc_port %d out of range", c.LocalRPCPort)
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port %d out of range", c.MetricsPort)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %s", c.CheckInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	// A hung probe must never span two ticks.
	if c.ProbeTimeout > c.CheckInterval {
		c.ProbeTimeout = c.CheckInterval
	}
	if c.Push.Enabled {
		if c.Push.APIURL == "" {
			return fmt.Errorf("push mode enabled but MONITORING_API_URL not set")
		}
		if c.Push.APIKey == "" {
			return fmt.Errorf("push mode enabled but MONITORING_API_KEY not set")
		}
		if c.Push.RetryAttempts < 1 {
			return fmt.Errorf("push retry_attempts must be at least 1, got %d", c.Push.RetryAttempts)
		}
	}
	return nil
}
