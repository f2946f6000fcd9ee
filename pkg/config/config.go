package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

// MailConfig describes the mail drop and outbound identity.
type MailConfig struct {
	MaildirPath   string `yaml:"maildir_path"`
	SecretKeyPath string `yaml:"secret_key_path"`
	Domain        string `yaml:"domain"`
	ReturnAddr    string `yaml:"return_addr"`
}

// TokenConfig bounds the dates a correlation token may carry.
type TokenConfig struct {
	MaxPastDays   int `yaml:"max_past_days"`
	MaxFutureDays int `yaml:"max_future_days"`
}

// IngestConfig controls commit behavior.
// OnDuplicate is "preserve" (first entry wins) or "replace".
type IngestConfig struct {
	OnDuplicate string `yaml:"on_duplicate"`
}

// MetricsConfig points at a Pushgateway; empty disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
}

type Config struct {
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	MQ      MQConfig      `yaml:"mq"`
	Mail    MailConfig    `yaml:"mail"`
	Token   TokenConfig   `yaml:"token"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Metrics MetricsConfig `yaml:"metrics"`
}

const (
	OnDuplicatePreserve = "preserve"
	OnDuplicateReplace  = "replace"
)

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{
		Token:  TokenConfig{MaxPastDays: 400, MaxFutureDays: 2},
		Ingest: IngestConfig{OnDuplicate: OnDuplicatePreserve},
	}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	overrideFromEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Ingest.OnDuplicate {
	case OnDuplicatePreserve, OnDuplicateReplace:
	default:
		return fmt.Errorf("invalid ingest.on_duplicate %q", c.Ingest.OnDuplicate)
	}
	// The maildir is only needed by the scanner; the sending and transform
	// binaries run without one, so its presence is checked at the scanner.
	if c.Mail.SecretKeyPath == "" {
		return fmt.Errorf("mail.secret_key_path is required")
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	if dir := os.Getenv("MAILDIR_PATH"); dir != "" {
		cfg.Mail.MaildirPath = dir
	}
	if key := os.Getenv("SECRET_KEY_PATH"); key != "" {
		cfg.Mail.SecretKeyPath = key
	}
	if domain := os.Getenv("MAIL_DOMAIN"); domain != "" {
		cfg.Mail.Domain = domain
	}

	if url := os.Getenv("METRICS_PUSHGATEWAY_URL"); url != "" {
		cfg.Metrics.PushgatewayURL = url
	}
}

// DSN renders the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name,
	)
}
