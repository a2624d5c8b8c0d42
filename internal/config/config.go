package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env     string        `mapstructure:"env"`
	Payment PaymentConfig `mapstructure:"payment"`
	Mailer  MailerConfig  `mapstructure:"mailer"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	LogSink LogSinkConfig `mapstructure:"logsink"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type PaymentConfig struct {
	Port              int           `mapstructure:"port"`
	MailerURL         string        `mapstructure:"mailer_url"`
	StrictTransitions bool          `mapstructure:"strict_transitions"`
	NotifyTimeout     time.Duration `mapstructure:"notify_timeout"`
	AsyncNotify       bool          `mapstructure:"async_notify"`
}

type MailerConfig struct {
	Port          int    `mapstructure:"port"`
	DefaultSender string `mapstructure:"default_sender"`
	DryRun        bool   `mapstructure:"dry_run"`
	TemplatesFile string `mapstructure:"templates_file"`
}

type SMTPConfig struct {
	Server   string        `mapstructure:"server"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LogSinkConfig struct {
	Port        int    `mapstructure:"port"`
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	MaxBytes    int64  `mapstructure:"max_bytes"`
	MaxSegments int    `mapstructure:"max_segments"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	DBSource    string `mapstructure:"db_source"`
	Async       bool   `mapstructure:"async"`
	QueueSize   int    `mapstructure:"queue_size"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Remote  bool   `mapstructure:"remote"`
	SinkURL string `mapstructure:"sink_url"`
}

// Backends accepted by logsink.backend.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var defaults = map[string]any{
	"env": "development",

	"payment.port":               8000,
	"payment.mailer_url":         "http://localhost:8001",
	"payment.strict_transitions": false,
	"payment.notify_timeout":     "10s",
	"payment.async_notify":       false,

	"mailer.port":           8001,
	"mailer.default_sender": "payment@example.com",
	"mailer.dry_run":        false,
	"mailer.templates_file": "",

	"smtp.server":   "sandbox.smtp.mailtrap.io",
	"smtp.port":     2525,
	"smtp.username": "",
	"smtp.password": "",
	"smtp.timeout":  "30s",

	"logsink.port":         8002,
	"logsink.backend":      BackendFile,
	"logsink.dir":          "logs",
	"logsink.max_bytes":    10 * 1024 * 1024,
	"logsink.max_segments": 5,
	"logsink.sqlite_path":  "logs/logs.db",
	"logsink.db_source":    "",
	"logsink.async":        true,
	"logsink.queue_size":   1024,

	"logging.level":    "info",
	"logging.format":   "text",
	"logging.remote":   true,
	"logging.sink_url": "http://localhost:8002",
}

// Environment variables keep the names the services have always read.
var envBindings = map[string]string{
	"env": "ENVIRONMENT",

	"payment.port":               "PAYMENT_PORT",
	"payment.mailer_url":         "EMAIL_SERVICE_URL",
	"payment.strict_transitions": "STRICT_TRANSITIONS",
	"payment.notify_timeout":     "NOTIFY_TIMEOUT",
	"payment.async_notify":       "ASYNC_NOTIFY",

	"mailer.port":           "MAILER_PORT",
	"mailer.default_sender": "DEFAULT_SENDER",
	"mailer.dry_run":        "TESTING",
	"mailer.templates_file": "MAILER_TEMPLATES",

	"smtp.server":   "SMTP_SERVER",
	"smtp.port":     "SMTP_PORT",
	"smtp.username": "SMTP_USERNAME",
	"smtp.password": "SMTP_PASSWORD",
	"smtp.timeout":  "SMTP_TIMEOUT",

	"logsink.port":         "LOGSINK_PORT",
	"logsink.backend":      "LOGSINK_BACKEND",
	"logsink.dir":          "LOG_DIR",
	"logsink.max_bytes":    "LOG_MAX_BYTES",
	"logsink.max_segments": "LOG_MAX_SEGMENTS",
	"logsink.sqlite_path":  "LOGSINK_SQLITE_PATH",
	"logsink.db_source":    "DB_SOURCE",
	"logsink.async":        "LOGSINK_ASYNC",
	"logsink.queue_size":   "LOGSINK_QUEUE_SIZE",

	"logging.level":    "LOG_LEVEL",
	"logging.format":   "LOG_FORMAT",
	"logging.remote":   "LOG_REMOTE",
	"logging.sink_url": "LOGGER_SERVICE_URL",
}

// Load resolves configuration from defaults, an optional file named by
// PAYFLOW_CONFIG (YAML or TOML) and the environment, in increasing priority.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, env := range envBindings {
		if err := v.BindEnv(k, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path := os.Getenv("PAYFLOW_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// SMTP settings are often exported with shell quotes left in place.
	cfg.SMTP.Server = unquote(cfg.SMTP.Server)
	cfg.SMTP.Username = unquote(cfg.SMTP.Username)
	cfg.SMTP.Password = unquote(cfg.SMTP.Password)
	cfg.Mailer.DefaultSender = unquote(cfg.Mailer.DefaultSender)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogSink.Backend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.LogSink.DBSource == "" {
			return fmt.Errorf("DB_SOURCE is required for the postgres log backend")
		}
	default:
		return fmt.Errorf("unknown log backend %q", c.LogSink.Backend)
	}
	if c.Payment.NotifyTimeout <= 0 {
		return fmt.Errorf("notify timeout must be positive")
	}
	return nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}
