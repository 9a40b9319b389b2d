package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Greenhouse Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Greenhouse GreenhouseConfig `yaml:"greenhouse"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Pump       PumpConfig       `yaml:"pump"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Decision   DecisionConfig   `yaml:"decision"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GreenhouseConfig contains site-specific information.
type GreenhouseConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CacheConfig contains Redis fast-cache settings.
// The cache mirrors current state and bounded recent history so other
// processes (the API layer, dashboards) can read without touching SQLite.
type CacheConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	KeyPrefix  string `yaml:"key_prefix"`
	RecentSize int    `yaml:"recent_size"`
}

// GatewayConfig contains IoT gateway connection settings for both transports.
type GatewayConfig struct {
	Account string               `yaml:"account"`
	Key     string               `yaml:"key"`
	MQTT    GatewayMQTTConfig    `yaml:"mqtt"`
	REST    GatewayRESTConfig    `yaml:"rest"`
	Retry   GatewayRetryConfig   `yaml:"retry"`
	Feeds   GatewayFeedsConfig   `yaml:"feeds"`
	Breaker GatewayBreakerConfig `yaml:"breaker"`
}

// GatewayMQTTConfig contains the pub/sub transport settings.
type GatewayMQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`
}

// GatewayRESTConfig contains the request/response transport settings.
type GatewayRESTConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// GatewayRetryConfig controls fixed-delay retries for provisioning calls.
type GatewayRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// GatewayFeedsConfig names the feed keys used by the controller and loops.
type GatewayFeedsConfig struct {
	Group       string `yaml:"group"`
	Pump        string `yaml:"pump"`
	Moisture    string `yaml:"moisture"`
	Temperature string `yaml:"temperature"`
	Humidity    string `yaml:"humidity"`
}

// GatewayBreakerConfig contains circuit breaker settings for the REST transport.
type GatewayBreakerConfig struct {
	Failures   int `yaml:"failures"`
	OpenMS     int `yaml:"open_ms"`
	IntervalMS int `yaml:"interval_ms"`
}

// TelemetryConfig contains InfluxDB connection settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// PumpConfig contains actuator safety limits and accounting constants.
type PumpConfig struct {
	// MaxRuntimeSeconds is the hard cap on a single irrigation run.
	MaxRuntimeSeconds int `yaml:"max_runtime_seconds"`

	// MinIntervalSeconds is the enforced cooldown between two activations.
	MinIntervalSeconds int `yaml:"min_interval_seconds"`

	// FlowRate is the pump throughput in litres per second, used to derive
	// water volume from elapsed runtime.
	FlowRate float64 `yaml:"flow_rate"`
}

// SchedulerConfig contains the schedule poll interval.
type SchedulerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// DecisionConfig contains the autonomous decision loop settings.
type DecisionConfig struct {
	Enabled bool `yaml:"enabled"`

	PollIntervalSeconds    int `yaml:"poll_interval_seconds"`
	MinDecisionIntervalSec int `yaml:"min_decision_interval_seconds"`

	// MaxReadingAgeSeconds is how old a moisture reading may be before the
	// loop refuses to decide on it.
	MaxReadingAgeSeconds int `yaml:"max_reading_age_seconds"`

	// MinConfidence is the bar an external recommendation must clear to
	// override the rule-based analysis.
	MinConfidence float64 `yaml:"min_confidence"`

	// Rule thresholds.
	MoistureMin    float64 `yaml:"moisture_min"`
	TemperatureMax float64 `yaml:"temperature_max"`
	HumidityMin    float64 `yaml:"humidity_min"`

	// Irrigation durations (seconds) per water amount class.
	DurationLight    int `yaml:"duration_light"`
	DurationModerate int `yaml:"duration_moderate"`
	DurationHeavy    int `yaml:"duration_heavy"`
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
// Environment variables follow the pattern: GREENHOUSE_SECTION_KEY
// For example: GREENHOUSE_DATABASE_PATH, GREENHOUSE_GATEWAY_KEY
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
func defaultConfig() *Config {
	return &Config{
		Greenhouse: GreenhouseConfig{
			ID:       "greenhouse-001",
			Name:     "Greenhouse",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/greenhouse.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Cache: CacheConfig{
			Addr:       "localhost:6379",
			KeyPrefix:  "greenhouse",
			RecentSize: 50,
		},
		Gateway: GatewayConfig{
			MQTT: GatewayMQTTConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "greenhouse-core",
				QoS:      1,
			},
			REST: GatewayRESTConfig{
				BaseURL: "http://localhost:8081/api/v2",
				Timeout: 10,
			},
			Retry: GatewayRetryConfig{
				Attempts: 3,
				DelayMS:  2000,
			},
			Feeds: GatewayFeedsConfig{
				Group:       "greenhouse",
				Pump:        "water-pump",
				Moisture:    "soil-moisture",
				Temperature: "temperature",
				Humidity:    "humidity",
			},
			Breaker: GatewayBreakerConfig{
				Failures:   5,
				OpenMS:     10000,
				IntervalMS: 60000,
			},
		},
		Pump: PumpConfig{
			MaxRuntimeSeconds:  1800,
			MinIntervalSeconds: 300,
			FlowRate:           0.1,
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds: 30,
		},
		Decision: DecisionConfig{
			Enabled:                true,
			PollIntervalSeconds:    60,
			MinDecisionIntervalSec: 300,
			MaxReadingAgeSeconds:   600,
			MinConfidence:          0.7,
			MoistureMin:            20,
			TemperatureMax:         32,
			HumidityMin:            40,
			DurationLight:          120,
			DurationModerate:       300,
			DurationHeavy:          600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GREENHOUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GREENHOUSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Cache
	if v := os.Getenv("GREENHOUSE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("GREENHOUSE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}

	// Gateway credentials (IMPORTANT: prefer env over file in production)
	if v := os.Getenv("GREENHOUSE_GATEWAY_ACCOUNT"); v != "" {
		cfg.Gateway.Account = v
	}
	if v := os.Getenv("GREENHOUSE_GATEWAY_KEY"); v != "" {
		cfg.Gateway.Key = v
	}
	if v := os.Getenv("GREENHOUSE_GATEWAY_MQTT_HOST"); v != "" {
		cfg.Gateway.MQTT.Host = v
	}
	if v := os.Getenv("GREENHOUSE_GATEWAY_REST_URL"); v != "" {
		cfg.Gateway.REST.BaseURL = v
	}

	// Telemetry
	if v := os.Getenv("GREENHOUSE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// Decision loop kill switch
	if v := os.Getenv("GREENHOUSE_DECISION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Decision.Enabled = b
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Greenhouse.ID == "" {
		errs = append(errs, "greenhouse.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Cache.Addr == "" {
		errs = append(errs, "cache.addr is required")
	}
	if c.Gateway.Account == "" {
		errs = append(errs, "gateway.account is required (set GREENHOUSE_GATEWAY_ACCOUNT environment variable)")
	}
	if c.Gateway.Key == "" {
		errs = append(errs, "gateway.key is required (set GREENHOUSE_GATEWAY_KEY environment variable)")
	}
	if c.Gateway.MQTT.QoS < 0 || c.Gateway.MQTT.QoS > 2 {
		errs = append(errs, "gateway.mqtt.qos must be 0, 1, or 2")
	}
	if c.Gateway.Feeds.Pump == "" {
		errs = append(errs, "gateway.feeds.pump is required")
	}
	if c.Pump.MaxRuntimeSeconds <= 0 {
		errs = append(errs, "pump.max_runtime_seconds must be positive")
	}
	if c.Pump.MinIntervalSeconds < 0 {
		errs = append(errs, "pump.min_interval_seconds cannot be negative")
	}
	if c.Pump.FlowRate <= 0 {
		errs = append(errs, "pump.flow_rate must be positive")
	}
	if c.Decision.MinConfidence < 0 || c.Decision.MinConfidence > 1 {
		errs = append(errs, "decision.min_confidence must be between 0 and 1")
	}
	if c.Decision.DurationLight <= 0 || c.Decision.DurationModerate <= 0 || c.Decision.DurationHeavy <= 0 {
		errs = append(errs, "decision durations must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MaxRuntime returns the pump maximum runtime as a Duration.
func (c *PumpConfig) MaxRuntime() time.Duration {
	return time.Duration(c.MaxRuntimeSeconds) * time.Second
}

// MinInterval returns the pump activation cooldown as a Duration.
func (c *PumpConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSeconds) * time.Second
}

// PollInterval returns the scheduler poll interval as a Duration.
func (c *SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PollInterval returns the decision loop poll interval as a Duration.
func (c *DecisionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MinDecisionInterval returns the minimum time between decisions as a Duration.
func (c *DecisionConfig) MinDecisionInterval() time.Duration {
	return time.Duration(c.MinDecisionIntervalSec) * time.Second
}

// MaxReadingAge returns the moisture staleness bound as a Duration.
func (c *DecisionConfig) MaxReadingAge() time.Duration {
	return time.Duration(c.MaxReadingAgeSeconds) * time.Second
}

// RetryDelay returns the gateway retry delay as a Duration.
func (c *GatewayRetryConfig) RetryDelay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// RequestTimeout returns the REST transport timeout as a Duration.
func (c *GatewayRESTConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
