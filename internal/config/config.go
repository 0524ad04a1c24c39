package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int    `mapstructure:"PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	CORSOrigins   string `mapstructure:"CORS_ORIGINS"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	StripeSecretKey   string        `mapstructure:"STRIPE_SECRET_KEY"`
	PaymentCurrency   string        `mapstructure:"PAYMENT_CURRENCY"`
	PaymentSuccessURL string        `mapstructure:"PAYMENT_SUCCESS_URL"`
	PaymentCancelURL  string        `mapstructure:"PAYMENT_CANCEL_URL"`
	GatewayTimeout    time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	PaymentRateLimit  int           `mapstructure:"PAYMENT_RATE_LIMIT"`
	PaymentRateWindow time.Duration `mapstructure:"PAYMENT_RATE_WINDOW"`

	TelegramBotToken     string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramPollInterval time.Duration `mapstructure:"TELEGRAM_POLL_INTERVAL"`
	AMQPURL              string        `mapstructure:"AMQP_URL"`
	NotificationExchange string        `mapstructure:"NOTIFICATION_EXCHANGE"`
	RedisURL             string        `mapstructure:"REDIS_URL"`

	NonOverdueSweepSchedule string `mapstructure:"NON_OVERDUE_SWEEP_SCHEDULE"`
	OverdueSweepSchedule    string `mapstructure:"OVERDUE_SWEEP_SCHEDULE"`
}

var defaults = map[string]any{
	"PORT":                       4001,
	"CORS_ORIGINS":               "http://localhost:3000",
	"ADMIN_EMAIL":                "admin@carsharing.local",
	"PAYMENT_CURRENCY":           "usd",
	"PAYMENT_SUCCESS_URL":        "http://localhost:4001/api/payments/success/{CHECKOUT_SESSION_ID}",
	"PAYMENT_CANCEL_URL":         "http://localhost:4001/api/payments/cancel/{CHECKOUT_SESSION_ID}",
	"GATEWAY_TIMEOUT":            "15s",
	"PAYMENT_RATE_LIMIT":         5,
	"PAYMENT_RATE_WINDOW":        "1m",
	"TELEGRAM_POLL_INTERVAL":     "5s",
	"NOTIFICATION_EXCHANGE":      "carsharing.notifications",
	"NON_OVERDUE_SWEEP_SCHEDULE": "0 9 * * *",
	"OVERDUE_SWEEP_SCHEDULE":     "30 12 * * *",
}

var optional = []string{
	"ADMIN_PASSWORD",
	"STRIPE_SECRET_KEY",
	"TELEGRAM_BOT_TOKEN",
	"AMQP_URL",
	"REDIS_URL",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
	viper.AutomaticEnv()

	// Bind explicitly so keys without a default still reach Unmarshal.
	for _, k := range append([]string{"DATABASE_URL", "JWT_SECRET", "ENCRYPTION_KEY"}, optional...) {
		_ = viper.BindEnv(k)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (must be exactly 32 bytes)")
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(cfg.EncryptionKey))
	}
	if cfg.GatewayTimeout <= 0 {
		return nil, fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}

	return &cfg, nil
}

// Origins splits CORS_ORIGINS into trimmed entries.
func (c *Config) Origins() []string {
	origins := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
