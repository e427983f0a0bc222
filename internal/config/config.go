package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultUserAgent is the browser identity sent with every page fetch.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Notify  NotifyConfig  `yaml:"notify" mapstructure:"notify"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	Backend      string  `yaml:"backend" mapstructure:"backend"` // "http" or "colly"
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HostRate     float64 `yaml:"host_rate" mapstructure:"host_rate"` // requests per second per host
}

// Timeout returns the per-request timeout as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// ExtractConfig configures fragment matching.
type ExtractConfig struct {
	Tags   []string `yaml:"tags" mapstructure:"tags"`
	MinLen int      `yaml:"min_len" mapstructure:"min_len"`
	MaxLen int      `yaml:"max_len" mapstructure:"max_len"`
}

// ScanConfig configures pagination and scan cycles.
type ScanConfig struct {
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	PageParam   string `yaml:"page_param" mapstructure:"page_param"`
	PacingMs    int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	PageRetries int    `yaml:"page_retries" mapstructure:"page_retries"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Schedule    string `yaml:"schedule" mapstructure:"schedule"`
	CycleSite   string `yaml:"cycle_site" mapstructure:"cycle_site"`
}

// Pacing returns the delay between page fetches.
func (s ScanConfig) Pacing() time.Duration {
	return time.Duration(s.PacingMs) * time.Millisecond
}

// RetryConfig configures retries of transient store writes.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// NotifyConfig groups the notification sinks. A sink with missing settings is disabled.
type NotifyConfig struct {
	Email    EmailConfig    `yaml:"email" mapstructure:"email"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string   `yaml:"host" mapstructure:"host"`
	Port     int      `yaml:"port" mapstructure:"port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to" mapstructure:"to"`
}

// Enabled reports whether enough settings are present to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.From != "" && len(e.To) > 0
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	ChatID int64  `yaml:"chat_id" mapstructure:"chat_id"`
}

// Enabled reports whether the bot can deliver messages.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// WebhookConfig holds the JSON webhook endpoint.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CronSecret  string   `yaml:"cron_secret" mapstructure:"cron_secret"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "watchtracker.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("fetch.backend", "http")
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.host_rate", 2.0)
	v.SetDefault("extract.tags", []string{"h1", "h2", "h3", "p", "span", "a"})
	v.SetDefault("extract.min_len", 3)
	v.SetDefault("extract.max_len", 150)
	v.SetDefault("scan.max_pages", 3)
	v.SetDefault("scan.page_param", "page")
	v.SetDefault("scan.pacing_ms", 1000)
	v.SetDefault("scan.page_retries", 0)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.schedule", "")
	v.SetDefault("scan.cycle_site", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("notify.email.host", "")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", []string{})
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cron_secret", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
// Modes: "scan" (engine only), "serve" (engine + HTTP surface), "cycle".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "scan", "cycle":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for postgres")
	}
	switch c.Fetch.Backend {
	case "http", "colly":
	default:
		problems = append(problems, "fetch.backend must be http or colly")
	}
	if c.Scan.MaxPages < 1 {
		problems = append(problems, "scan.max_pages must be >= 1")
	}
	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 32 {
		problems = append(problems, "scan.concurrency must be between 1 and 32")
	}
	if c.Scan.PacingMs < 0 {
		problems = append(problems, "scan.pacing_ms must be >= 0")
	}
	if c.Extract.MaxLen <= c.Extract.MinLen {
		problems = append(problems, "extract.max_len must be greater than extract.min_len")
	}
	if len(c.Extract.Tags) == 0 {
		problems = append(problems, "extract.tags must not be empty")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
