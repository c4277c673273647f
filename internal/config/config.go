package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// SMTPConfig holds mail transport settings
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// Configured reports whether every field needed to dial and send is set
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port > 0 && s.User != "" && s.Pass != "" && s.From != ""
}

// Config holds the application configuration
type Config struct {
	DatabaseURL   string        `yaml:"database_url"`
	Port          string        `yaml:"port"`
	Env           string        `yaml:"env"`
	LogLevel      string        `yaml:"log_level"`
	OTPTTL        time.Duration `yaml:"otp_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	CORSOrigin    string        `yaml:"cors_origin"`
	SMTP          SMTPConfig    `yaml:"smtp"`
}

// Production reports whether delivery failures must be surfaced to callers
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

func defaults() *Config {
	return &Config{
		Port:          "8080",
		Env:           EnvDevelopment,
		LogLevel:      "info",
		OTPTTL:        10 * time.Minute,
		BcryptCost:    12,
		NotifyTimeout: 15 * time.Second,
		CORSOrigin:    "http://localhost:3000",
		SMTP:          SMTPConfig{Port: 587},
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("PORT", &cfg.Port)
	setString("APP_ENV", &cfg.Env)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("CORS_ORIGIN", &cfg.CORSOrigin)
	setString("SMTP_HOST", &cfg.SMTP.Host)
	setString("SMTP_USER", &cfg.SMTP.User)
	setString("SMTP_PASS", &cfg.SMTP.Pass)
	setString("SMTP_FROM", &cfg.SMTP.From)

	if v := os.Getenv("OTP_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OTP_TTL %q: %w", v, err)
		}
		cfg.OTPTTL = d
	}
	if v := os.Getenv("NOTIFY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_TIMEOUT %q: %w", v, err)
		}
		cfg.NotifyTimeout = d
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST %q: %w", v, err)
		}
		cfg.BcryptCost = n
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		cfg.SMTP.Port = n
	}

	cfg.Env = strings.ToLower(cfg.Env)
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if _, err := url.Parse(c.DatabaseURL); err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.Production() && !c.SMTP.Configured() {
		return fmt.Errorf("SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS and SMTP_FROM are required in production")
	}
	return nil
}
