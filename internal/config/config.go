package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrJWTSecretRequired = errors.New("JWT_SECRET environment variable is required")
	ErrJWTSecretTooShort = errors.New("JWT_SECRET must be at least 32 characters long")
	ErrBackendRequired   = errors.New("BACKEND_URL is required")
	ErrGatewaySecret     = errors.New("GATEWAY_SECRET is required when GATEWAY_KEY_ID is set")
	ErrKafkaRequired     = errors.New("KAFKA_BROKERS is required")
	ErrBreakerFailures   = errors.New("BREAKER_FAILURES must be at least 1")
)

// Config holds both services' settings. BreakerFailures consecutive backend
// failures open the circuit for BreakerCooldown. PaymentTTL bounds how long a
// session may wait on the payment widget before it is swept.
type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	BackendURL      string        `yaml:"backend_url"`
	BackendTimeout  time.Duration `yaml:"backend_timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
	JWTSecret       string        `yaml:"jwt_secret"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	DatabaseURL     string        `yaml:"database_url"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	NotifierGroup   string        `yaml:"notifier_group"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	PaymentTTL      time.Duration `yaml:"payment_ttl"`
	LastOrderTTL    time.Duration `yaml:"last_order_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Redis           RedisConfig   `yaml:"redis"`
	Gateway         GatewayConfig `yaml:"gateway"`
	SMTP            SMTPConfig    `yaml:"smtp"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayConfig configures the hosted payment widget. An empty KeyID
// disables online payment.
type GatewayConfig struct {
	KeyID       string `yaml:"key_id"`
	Secret      string `yaml:"secret"`
	Currency    string `yaml:"currency"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	ThemeColor  string `yaml:"theme_color"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	From string `yaml:"from"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:        "8080",
		BackendURL:      "http://localhost:5000",
		BackendTimeout:  10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		JWTIssuer:       "ec-shop",
		KafkaTopic:      "checkout-events",
		NotifierGroup:   "checkout-notifier",
		SessionTTL:      30 * time.Minute,
		PaymentTTL:      2 * time.Hour,
		LastOrderTTL:    30 * 24 * time.Hour,
		ShutdownTimeout: 10 * time.Second,
		Gateway: GatewayConfig{
			Currency:    "INR",
			DisplayName: "EC Shop",
			Description: "Order payment",
			ThemeColor:  "#3399cc",
		},
		SMTP: SMTPConfig{
			Host: "localhost",
			Port: "1025",
			From: "noreply@example.com",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CHECKOUT_CONFIG, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CHECKOUT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnv("PORT", c.HTTPPort)
	c.BackendURL = getEnv("BACKEND_URL", c.BackendURL)
	c.BackendTimeout = getEnvAsDuration("BACKEND_TIMEOUT", c.BackendTimeout)
	c.BreakerFailures = getEnvAsInt("BREAKER_FAILURES", c.BreakerFailures)
	c.BreakerCooldown = getEnvAsDuration("BREAKER_COOLDOWN", c.BreakerCooldown)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.KafkaBrokers = splitList(brokers)
	}
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.NotifierGroup = getEnv("NOTIFIER_GROUP", c.NotifierGroup)
	c.SessionTTL = getEnvAsDuration("SESSION_TTL", c.SessionTTL)
	c.PaymentTTL = getEnvAsDuration("PAYMENT_TTL", c.PaymentTTL)
	c.LastOrderTTL = getEnvAsDuration("LAST_ORDER_TTL", c.LastOrderTTL)
	c.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.Gateway.KeyID = getEnv("GATEWAY_KEY_ID", c.Gateway.KeyID)
	c.Gateway.Secret = getEnv("GATEWAY_SECRET", c.Gateway.Secret)
	c.Gateway.Currency = getEnv("GATEWAY_CURRENCY", c.Gateway.Currency)
	c.Gateway.DisplayName = getEnv("GATEWAY_DISPLAY_NAME", c.Gateway.DisplayName)
	c.Gateway.Description = getEnv("GATEWAY_DESCRIPTION", c.Gateway.Description)
	c.Gateway.ThemeColor = getEnv("GATEWAY_THEME_COLOR", c.Gateway.ThemeColor)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnv("SMTP_PORT", c.SMTP.Port)
	c.SMTP.From = getEnv("SMTP_FROM", c.SMTP.From)
}

// Validate checks what the API server needs to start.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if len(c.JWTSecret) < 32 {
		return ErrJWTSecretTooShort
	}
	if c.BackendURL == "" {
		return ErrBackendRequired
	}
	if c.Gateway.KeyID != "" && c.Gateway.Secret == "" {
		return ErrGatewaySecret
	}
	if c.BreakerFailures < 1 {
		return ErrBreakerFailures
	}
	return nil
}

// ValidateNotifier checks what the notifier needs to start.
func (c *Config) ValidateNotifier() error {
	if len(c.KafkaBrokers) == 0 {
		return ErrKafkaRequired
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
