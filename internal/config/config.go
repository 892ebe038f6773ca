// Package config reads service settings from an optional YAML file (CONFIG_FILE) and the
// environment. Environment variables win over the file.
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

type Config struct {
	Port        string        `yaml:"port"`
	PostgresURL string        `yaml:"postgres_url"`
	RedisURL    string        `yaml:"redis_url"`
	CartTTL     time.Duration `yaml:"cart_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	RabbitMQURL  string   `yaml:"rabbitmq_url"`

	GeocodingURL    string        `yaml:"geocoding_url"`
	GoogleMapsKey   string        `yaml:"google_maps_api_key"`
	GeocodeCacheTTL time.Duration `yaml:"geocode_cache_ttl"`

	EmailServiceURL string `yaml:"email_service_url"`
	ResendURL       string `yaml:"resend_url"`
	ResendAPIKey    string `yaml:"resend_api_key"`
	EmailFrom       string `yaml:"email_from"`

	TelegramURL      string `yaml:"telegram_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	OrdersServiceURL  string `yaml:"orders_service_url"`
	PantryServiceURL  string `yaml:"pantry_service_url"`
	PrinterServiceURL string `yaml:"printer_service_url"`

	DefaultPrinter string `yaml:"default_printer"`
	ReceiptWidth   int    `yaml:"receipt_width"`
	TimeZone       string `yaml:"time_zone"`
}

// Load builds the configuration for a service listening on defaultPort unless PORT says otherwise.
func Load(defaultPort string) (*Config, error) {
	cfg := &Config{
		Port:            defaultPort,
		CartTTL:         72 * time.Hour,
		GeocodeCacheTTL: 30 * 24 * time.Hour,
		EmailFrom:       "onboarding@resend.dev",
		ReceiptWidth:    32,
		TimeZone:        "Europe/Prague",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("POSTGRES_URL", &c.PostgresURL)
	str("REDIS_URL", &c.RedisURL)
	str("RABBITMQ_URL", &c.RabbitMQURL)
	str("GEOCODING_URL", &c.GeocodingURL)
	str("GOOGLE_MAPS_API_KEY", &c.GoogleMapsKey)
	str("EMAIL_SERVICE_URL", &c.EmailServiceURL)
	str("RESEND_URL", &c.ResendURL)
	str("RESEND_API_KEY", &c.ResendAPIKey)
	str("EMAIL_FROM", &c.EmailFrom)
	str("TELEGRAM_URL", &c.TelegramURL)
	str("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	str("TELEGRAM_CHAT_ID", &c.TelegramChatID)
	str("ORDERS_SERVICE_URL", &c.OrdersServiceURL)
	str("PANTRY_SERVICE_URL", &c.PantryServiceURL)
	str("PRINTER_SERVICE_URL", &c.PrinterServiceURL)
	str("DEFAULT_PRINTER", &c.DefaultPrinter)
	str("TIME_ZONE", &c.TimeZone)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitCSV(v)
	}

	if v := os.Getenv("CART_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CART_TTL: %w", err)
		}
		c.CartTTL = d
	}
	if v := os.Getenv("GEOCODE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GEOCODE_CACHE_TTL: %w", err)
		}
		c.GeocodeCacheTTL = d
	}
	if v := os.Getenv("RECEIPT_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("RECEIPT_WIDTH must be a positive integer, got %q", v)
		}
		c.ReceiptWidth = n
	}

	return nil
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WithSearchPath sets the Postgres search_path as a startup parameter of a URL-style DSN, so
// every pooled connection sees the same schemas.
func WithSearchPath(dsn string, schemas ...string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("postgres url must use the postgres scheme, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("search_path", strings.Join(schemas, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
