package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/newthinker/quantbench/internal/analytics"
	"github.com/newthinker/quantbench/internal/core"
)

// EnvPrefix prefixes environment overrides: QUANTBENCH_ENGINE_FEE_RATE
// overrides engine.fee_rate.
const EnvPrefix = "QUANTBENCH"

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Engine    EngineConfig     `mapstructure:"engine"`
	Analytics analytics.Config `mapstructure:"analytics"`
	Stability StabilityConfig  `mapstructure:"stability"`
	Collector CollectorConfig  `mapstructure:"collector"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Notify    NotifyConfig     `mapstructure:"notify"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	APIKey         string        `mapstructure:"api_key"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	JobTTLHours    int           `mapstructure:"job_ttl_hours"`
	MaxJobs        int           `mapstructure:"max_jobs"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

type StorageConfig struct {
	// DataDir holds the parquet bar files.
	DataDir string `mapstructure:"data_dir"`
	// HistoryPath is the SQLite run history; empty disables it.
	HistoryPath string        `mapstructure:"history_path"`
	Archive     ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "none", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// EngineConfig holds the account and execution defaults of a run.
type EngineConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	FeeRate        float64 `mapstructure:"fee_rate"`
	PositionSize   float64 `mapstructure:"position_size"`
}

// StabilityConfig controls the parameter perturbation probe.
type StabilityConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Factors []float64 `mapstructure:"factors"`
}

type CollectorConfig struct {
	Source      string        `mapstructure:"source"`
	BaseURL     string        `mapstructure:"base_url"`
	Pause       time.Duration `mapstructure:"pause"`
	DefaultDays int           `mapstructure:"default_days"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifyConfig configures run completion notifications. Each channel is
// enabled by its address: WebhookURL, Email.Host or Telegram.BotToken.
type NotifyConfig struct {
	WebhookURL string            `mapstructure:"webhook_url"`
	Headers    map[string]string `mapstructure:"headers"`
	Email      EmailConfig       `mapstructure:"email"`
	Telegram   TelegramConfig    `mapstructure:"telegram"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	OnFailure  bool              `mapstructure:"on_failure"`
}

// EmailConfig holds SMTP settings. Username may be empty for relays
// without auth.
type EmailConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	BaseURL  string `mapstructure:"base_url"`
}

// Load reads configuration layered as defaults, then the file at path (if
// any), then environment variables. A .env file in the working directory
// is loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading .env: %w", err))
	}

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("server.run_timeout", d.Server.RunTimeout)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.history_path", d.Storage.HistoryPath)
	v.SetDefault("storage.archive.type", d.Storage.Archive.Type)
	v.SetDefault("storage.archive.path", d.Storage.Archive.Path)
	v.SetDefault("storage.archive.s3.bucket", "")
	v.SetDefault("storage.archive.s3.endpoint", "")
	v.SetDefault("storage.archive.s3.region", "")
	v.SetDefault("storage.archive.s3.access_key", "")
	v.SetDefault("storage.archive.s3.secret_key", "")
	v.SetDefault("storage.archive.s3.prefix", "")

	v.SetDefault("engine.initial_capital", d.Engine.InitialCapital)
	v.SetDefault("engine.fee_rate", d.Engine.FeeRate)
	v.SetDefault("engine.position_size", d.Engine.PositionSize)

	v.SetDefault("analytics.regime_window", d.Analytics.RegimeWindow)
	v.SetDefault("analytics.monte_carlo.runs", d.Analytics.MonteCarlo.Runs)
	v.SetDefault("analytics.monte_carlo.low", d.Analytics.MonteCarlo.Low)
	v.SetDefault("analytics.monte_carlo.high", d.Analytics.MonteCarlo.High)
	v.SetDefault("analytics.monte_carlo.seed", d.Analytics.MonteCarlo.Seed)
	v.SetDefault("analytics.thresholds.ruin", d.Analytics.Thresholds.Ruin)
	v.SetDefault("analytics.thresholds.deterioration", d.Analytics.Thresholds.Deterioration)
	v.SetDefault("analytics.thresholds.significance", d.Analytics.Thresholds.Significance)
	v.SetDefault("analytics.thresholds.fragility", d.Analytics.Thresholds.Fragility)
	v.SetDefault("analytics.thresholds.extreme_fragility", d.Analytics.Thresholds.ExtremeFragility)
	v.SetDefault("analytics.thresholds.inaction", d.Analytics.Thresholds.Inaction)

	v.SetDefault("stability.enabled", d.Stability.Enabled)
	v.SetDefault("stability.factors", d.Stability.Factors)

	v.SetDefault("collector.source", d.Collector.Source)
	v.SetDefault("collector.base_url", d.Collector.BaseURL)
	v.SetDefault("collector.pause", d.Collector.Pause)
	v.SetDefault("collector.default_days", d.Collector.DefaultDays)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("notify.webhook_url", d.Notify.WebhookURL)
	v.SetDefault("notify.timeout", d.Notify.Timeout)
	v.SetDefault("notify.on_failure", d.Notify.OnFailure)
	v.SetDefault("notify.email.host", "")
	v.SetDefault("notify.email.port", d.Notify.Email.Port)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", []string{})
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.base_url", d.Notify.Telegram.BaseURL)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			JobTTLHours:    1,
			MaxJobs:        100,
			RunTimeout:     5 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir:     "data/processed",
			HistoryPath: "data/db/runs.db",
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "data/archive",
			},
		},
		Engine: EngineConfig{
			InitialCapital: 10000,
			FeeRate:        0.001,
			PositionSize:   0.98,
		},
		Analytics: analytics.DefaultConfig(),
		Stability: StabilityConfig{
			Enabled: true,
			Factors: []float64{0.8, 0.9, 1.1, 1.2},
		},
		Collector: CollectorConfig{
			Source:      "binance",
			BaseURL:     "https://api.binance.com",
			Pause:       250 * time.Millisecond,
			DefaultDays: 365,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Notify: NotifyConfig{
			Email:     EmailConfig{Port: 587},
			Telegram:  TelegramConfig{BaseURL: "https://api.telegram.org"},
			Timeout:   10 * time.Second,
			OnFailure: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RunTimeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("run_timeout must be positive, got %s", c.Server.RunTimeout))
	}

	// Engine validation
	if c.Engine.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Engine.InitialCapital))
	}
	if c.Engine.FeeRate < 0 || c.Engine.FeeRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fee_rate must be in [0, 1), got %f", c.Engine.FeeRate))
	}
	if c.Engine.PositionSize <= 0 || c.Engine.PositionSize > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position_size must be in (0, 1], got %f", c.Engine.PositionSize))
	}

	// Analytics validation
	if c.Analytics.RegimeWindow < 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("regime_window must be at least 2, got %d", c.Analytics.RegimeWindow))
	}
	mc := c.Analytics.MonteCarlo
	if mc.Runs < 0 || mc.Low > mc.High {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("monte_carlo needs runs >= 0 and low <= high, got %d [%f, %f]", mc.Runs, mc.Low, mc.High))
	}
	if s := c.Analytics.Thresholds.Significance; s <= 0 || s >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("significance must be in (0, 1), got %f", s))
	}

	for _, f := range c.Stability.Factors {
		if f <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("stability factors must be positive, got %f", f))
		}
	}

	// Archive validation - backend specific settings must exist
	switch c.Storage.Archive.Type {
	case "", "none":
	case "localfs":
		if c.Storage.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
	}

	if u := c.Notify.WebhookURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("notify webhook_url must be an http(s) URL, got %q", u))
	}
	if e := c.Notify.Email; e.Host != "" {
		if e.From == "" || len(e.To) == 0 {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("notify email needs from and to when host is set"))
		}
		if e.Port < 1 || e.Port > 65535 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("notify email port must be between 1 and 65535, got %d", e.Port))
		}
	}
	if tg := c.Notify.Telegram; tg.BotToken != "" && tg.ChatID == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notify telegram chat_id required when bot_token is set"))
	}

	if c.Storage.DataDir == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage data_dir required"))
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
