package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/ogulcanaydogan/spend-guardian/pkg/period"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all Spend Guardian configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Clock   ClockConfig   `mapstructure:"clock"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// DedupConfig selects where notification markers are kept.
type DedupConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis marker store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LimitsConfig holds per-period spending limits as decimal strings.
// Zero disables a period.
type LimitsConfig struct {
	Daily   string `mapstructure:"daily"`
	Weekly  string `mapstructure:"weekly"`
	Monthly string `mapstructure:"monthly"`
}

// ClockConfig selects real or accelerated thresholds.
type ClockConfig struct {
	Debug      bool              `mapstructure:"debug"`
	Thresholds map[string]string `mapstructure:"thresholds"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Policy  string        `mapstructure:"policy"`
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Log     LogConfig     `mapstructure:"log"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// LogConfig enables alert delivery to the process log.
type LogConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig defines the daemon HTTP listener.
type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// EngineConfig tunes evaluation.
type EngineConfig struct {
	QueryTimeout   string `mapstructure:"query_timeout"`
	ResolveOverdue bool   `mapstructure:"resolve_overdue"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from a .env file, the config file and
// environment variables, then validates it.
func Load(cfgFile string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".sg"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("SG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".sg", "guardian.db"))
	v.SetDefault("dedup.backend", "sqlite")
	v.SetDefault("dedup.redis.addr", "localhost:6379")
	v.SetDefault("dedup.redis.db", 0)
	v.SetDefault("dedup.redis.prefix", "sg:dedup:")
	v.SetDefault("limits.daily", "50")
	v.SetDefault("limits.weekly", "300")
	v.SetDefault("limits.monthly", "1000")
	v.SetDefault("clock.debug", false)
	v.SetDefault("alerts.policy", string(engine.PolicyEach))
	v.SetDefault("alerts.slack.channel", "#spending")
	v.SetDefault("alerts.log.enabled", true)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("engine.query_timeout", "5s")
	v.SetDefault("engine.resolve_overdue", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// loadEnvFile loads variables from path when it exists. Variables already
// set in the environment win.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate rejects configuration that would fail at runtime.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	switch c.Dedup.Backend {
	case "sqlite":
	case "redis":
		if c.Dedup.Redis.Addr == "" {
			return fmt.Errorf("dedup.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown dedup.backend %q", c.Dedup.Backend)
	}
	if _, err := c.LimitAmounts(); err != nil {
		return err
	}
	if _, err := c.NewClock(); err != nil {
		return err
	}
	if _, err := engine.ParsePolicy(c.Alerts.Policy); err != nil {
		return err
	}
	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		return fmt.Errorf("alerts.slack.webhook_url is required when slack is enabled")
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		return fmt.Errorf("alerts.webhook.url is required when the webhook is enabled")
	}
	for key, value := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"engine.query_timeout": c.Engine.QueryTimeout,
	} {
		if _, err := parseDuration(key, value); err != nil {
			return err
		}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// LimitAmounts parses the configured spending limits.
func (c *Config) LimitAmounts() (engine.Limits, error) {
	limits := engine.Limits{}
	for kind, raw := range map[period.Kind]string{
		period.Daily:   c.Limits.Daily,
		period.Weekly:  c.Limits.Weekly,
		period.Monthly: c.Limits.Monthly,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("limits.%s: %w", kind, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("limits.%s must not be negative, got %s", kind, amount)
		}
		limits[kind] = amount
	}
	return limits, nil
}

// NewClock builds the system clock with the configured threshold overrides.
func (c *Config) NewClock() (*clock.System, error) {
	overrides := make(map[clock.Label]time.Duration, len(c.Clock.Thresholds))
	for raw, value := range c.Clock.Thresholds {
		label, err := clock.ParseLabel(raw)
		if err != nil {
			return nil, fmt.Errorf("clock.thresholds: %w", err)
		}
		d, err := parseDuration("clock.thresholds."+raw, value)
		if err != nil {
			return nil, err
		}
		overrides[label] = d
	}
	sys, err := clock.NewSystem(c.Clock.Debug, overrides)
	if err != nil {
		return nil, fmt.Errorf("clock: %w", err)
	}
	return sys, nil
}

// EngineOptions converts the configuration into engine options.
func (c *Config) EngineOptions() (engine.Options, error) {
	limits, err := c.LimitAmounts()
	if err != nil {
		return engine.Options{}, err
	}
	policy, err := engine.ParsePolicy(c.Alerts.Policy)
	if err != nil {
		return engine.Options{}, err
	}
	timeout, err := parseDuration("engine.query_timeout", c.Engine.QueryTimeout)
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Limits:         limits,
		Policy:         policy,
		QueryTimeout:   timeout,
		ResolveOverdue: c.Engine.ResolveOverdue,
	}, nil
}

// ServerTimeouts returns the parsed read and write timeouts.
func (c *Config) ServerTimeouts() (read, write time.Duration, err error) {
	if read, err = parseDuration("server.read_timeout", c.Server.ReadTimeout); err != nil {
		return 0, 0, err
	}
	if write, err = parseDuration("server.write_timeout", c.Server.WriteTimeout); err != nil {
		return 0, 0, err
	}
	return read, write, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
