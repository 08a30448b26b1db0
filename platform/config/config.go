// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the identity service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetScanInterval() time.Duration
}

// RateLimitConfig provides settings for the public intake rate limiter.
type RateLimitConfig interface {
	GetRedisURL() string
	GetIntakeRateLimit() int
	GetIntakeRateWindow() time.Duration
	GetIntakeRateTimeout() time.Duration
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	IsSMSEnabled() bool
}

// MetaConfig provides settings for the Meta (Instagram/Facebook) messaging platform.
type MetaConfig interface {
	GetMetaAppSecret() string
	GetMetaVerifyToken() string
	GetMetaGraphURL() string
}

// PaymentsConfig provides settings for the payment provider.
type PaymentsConfig interface {
	GetPaymentsAPIURL() string
	GetPaymentsAPIKey() string
	GetPaymentsWebhookSecret() string
	IsPaymentsEnabled() bool
}

// StorageConfig provides settings for MinIO S3-compatible asset storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketClientAssets() string
	IsMinIOEnabled() bool
}

// AppConfig provides general application settings used for link building.
type AppConfig interface {
	GetAppBaseURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	ScanInterval            time.Duration
	JWTAccessSecret         string
	AccessTokenTTL          time.Duration
	CORSAllowAll            bool
	CORSOrigins             []string
	AppBaseURL              string
	IntakeRateLimit         int
	IntakeRateWindow        time.Duration
	IntakeRateTimeout       time.Duration
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	SMSGatewayURL           string
	SMSGatewayKey           string
	MetaAppSecret           string
	MetaVerifyToken         string
	MetaGraphURL            string
	PaymentsAPIURL          string
	PaymentsAPIKey          string
	PaymentsWebhookSecret   string
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketClientAssets string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig / AuthServiceConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetScanInterval() time.Duration { return c.ScanInterval }

// RateLimitConfig implementation
func (c *Config) GetIntakeRateLimit() int             { return c.IntakeRateLimit }
func (c *Config) GetIntakeRateWindow() time.Duration  { return c.IntakeRateWindow }
func (c *Config) GetIntakeRateTimeout() time.Duration { return c.IntakeRateTimeout }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string { return c.SMSGatewayKey }
func (c *Config) IsSMSEnabled() bool       { return c.SMSGatewayURL != "" }

// MetaConfig implementation
func (c *Config) GetMetaAppSecret() string   { return c.MetaAppSecret }
func (c *Config) GetMetaVerifyToken() string { return c.MetaVerifyToken }
func (c *Config) GetMetaGraphURL() string    { return c.MetaGraphURL }

// PaymentsConfig implementation
func (c *Config) GetPaymentsAPIURL() string        { return c.PaymentsAPIURL }
func (c *Config) GetPaymentsAPIKey() string        { return c.PaymentsAPIKey }
func (c *Config) GetPaymentsWebhookSecret() string { return c.PaymentsWebhookSecret }
func (c *Config) IsPaymentsEnabled() bool {
	return c.PaymentsAPIURL != "" && c.PaymentsAPIKey != ""
}

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string           { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string          { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string          { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool               { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketClientAssets() string { return c.MinioBucketClientAssets }
func (c *Config) IsMinIOEnabled() bool               { return c.MinIOEndpoint != "" }

// AppConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ScanInterval:            mustDuration(getEnv("SCAN_INTERVAL", "10m")),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:          mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		AppBaseURL:              getEnv("APP_BASE_URL", "http://localhost:4200"),
		IntakeRateLimit:         mustInt(getEnv("INTAKE_RATE_LIMIT", "10")),
		IntakeRateWindow:        mustDuration(getEnv("INTAKE_RATE_WINDOW", "1m")),
		IntakeRateTimeout:       mustDuration(getEnv("INTAKE_RATE_TIMEOUT", "800ms")),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "InkFlow"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSGatewayURL:           getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:           getEnv("SMS_GATEWAY_KEY", ""),
		MetaAppSecret:           getEnv("META_APP_SECRET", ""),
		MetaVerifyToken:         getEnv("META_VERIFY_TOKEN", ""),
		MetaGraphURL:            getEnv("META_GRAPH_URL", "https://graph.facebook.com/v19.0"),
		PaymentsAPIURL:          getEnv("PAYMENTS_API_URL", ""),
		PaymentsAPIKey:          getEnv("PAYMENTS_API_KEY", ""),
		PaymentsWebhookSecret:   getEnv("PAYMENTS_WEBHOOK_SECRET", ""),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketClientAssets: getEnv("MINIO_BUCKET_CLIENT_ASSETS", "client-assets"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.IntakeRateTimeout <= 0 {
		cfg.IntakeRateTimeout = 800 * time.Millisecond
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
