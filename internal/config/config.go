// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Gateway     GatewayConfig
	Settlement  SettlementConfig
	Payout      PayoutConfig
	Webhook     WebhookConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type GatewayConfig struct {
	CashfreeBaseURL       string
	CashfreeAppID         string
	CashfreeSecretKey     string
	CashfreeAPIVersion    string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	FrontendURL           string
	BackendURL            string
	RequestTimeout        int // in seconds
}

type SettlementConfig struct {
	Timezone string
	// Cron spec for the recurring sweep, in the operating timezone.
	SweepSchedule string
}

// PayoutConfig makes the historically inconsistent payout limits an
// explicit operator decision rather than a hardcoded rule.
type PayoutConfig struct {
	MinAmount float64
	MaxAmount float64
	// When false, requests below MinAmount are rejected outright; when
	// true they are admitted and charged the flat fee.
	AllowBelowMinimum bool
}

type WebhookConfig struct {
	// Timeout for outbound merchant notification delivery.
	DeliveryTimeout int // in seconds
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "cashcavash"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		Gateway: GatewayConfig{
			CashfreeBaseURL:       getEnv("CASHFREE_BASE_URL", "https://sandbox.cashfree.com/pg"),
			CashfreeAppID:         getEnv("CASHFREE_APP_ID", ""),
			CashfreeSecretKey:     getEnv("CASHFREE_SECRET_KEY", ""),
			CashfreeAPIVersion:    getEnv("CASHFREE_API_VERSION", "2023-08-01"),
			RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:3000"),
			BackendURL:            getEnv("BACKEND_URL", "http://localhost:8080"),
			RequestTimeout:        getEnvAsInt("GATEWAY_REQUEST_TIMEOUT", 30),
		},
		Settlement: SettlementConfig{
			Timezone:      getEnv("SETTLEMENT_TIMEZONE", "Asia/Kolkata"),
			SweepSchedule: getEnv("SETTLEMENT_SWEEP_SCHEDULE", "0 * * * *"),
		},
		Payout: PayoutConfig{
			MinAmount:         getEnvAsFloat("PAYOUT_MIN_AMOUNT", 500),
			MaxAmount:         getEnvAsFloat("PAYOUT_MAX_AMOUNT", 100000),
			AllowBelowMinimum: getEnvAsBool("PAYOUT_ALLOW_BELOW_MINIMUM", false),
		},
		Webhook: WebhookConfig{
			DeliveryTimeout: getEnvAsInt("WEBHOOK_DELIVERY_TIMEOUT", 10),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if _, err := time.LoadLocation(c.Settlement.Timezone); err != nil {
		return fmt.Errorf("invalid settlement timezone %q: %w", c.Settlement.Timezone, err)
	}

	if c.Payout.MinAmount < 0 || c.Payout.MaxAmount <= 0 || c.Payout.MaxAmount < c.Payout.MinAmount {
		return fmt.Errorf("invalid payout limits: min=%.2f max=%.2f", c.Payout.MinAmount, c.Payout.MaxAmount)
	}

	return nil
}

// SettlementLocation resolves the operating timezone. Validate has already
// checked it loads.
func (c *Config) SettlementLocation() *time.Location {
	loc, err := time.LoadLocation(c.Settlement.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
