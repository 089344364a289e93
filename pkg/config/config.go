package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	ERP      ERPConfig
	Cache    CacheConfig
	Audit    AuditConfig
	OTEL     OTELConfig
}

// LogConfig holds logger configuration
type LogConfig struct {
	ServiceName string
	Env         string
	Level       string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ERPConfig holds defaults for outbound ERP calls. Per-integration settings
// stored with the integration take precedence.
type ERPConfig struct {
	// APIURL and APIToken feed the static credentials provider used when no
	// per-integration credentials are stored.
	APIURL   string
	APIToken string
	UseMock  bool
	// AllowMockFallback serves read calls from the mock provider when the
	// ERP fails. Writes never fall back.
	AllowMockFallback bool

	Timeout         time.Duration
	RetryCooldown   time.Duration
	MaxSpanDays     int
	AvailabilityTTL time.Duration
}

// CacheConfig holds entity cache TTLs keyed by entity type
type CacheConfig struct {
	EntityTTLs map[string]time.Duration
}

// AuditConfig holds the audit stream configuration
type AuditConfig struct {
	Stream string
	MaxLen int64
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// DefaultEntityTTLs are applied when CACHE_ENTITY_TTLS is unset. Slow
// changing reference data gets long TTLs; doctors are never cached.
const DefaultEntityTTLs = "insurance=24h,insurance_plan=12h,insurance_sub_plan=12h,plan_category=12h," +
	"speciality=6h,procedure=6h,organization_unit=24h,organization_unit_location=24h," +
	"occupation_area=24h,type_of_service=24h,laterality=24h,appointment_type=24h"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LOG_SERVICE_NAME", "erpbridge")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "erpbridge")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ERP_API_URL", "")
	v.SetDefault("ERP_API_TOKEN", "")
	v.SetDefault("ERP_USE_MOCK", false)
	v.SetDefault("ERP_ALLOW_MOCK_FALLBACK", false)
	v.SetDefault("ERP_TIMEOUT", "30s")
	v.SetDefault("ERP_RETRY_COOLDOWN", "10s")
	v.SetDefault("ERP_MAX_SPAN_DAYS", 0)
	v.SetDefault("ERP_AVAILABILITY_TTL", "0s")
	v.SetDefault("CACHE_ENTITY_TTLS", DefaultEntityTTLs)
	v.SetDefault("AUDIT_STREAM", "erp:audit")
	v.SetDefault("AUDIT_MAX_LEN", 100000)
	v.SetDefault("OTEL_SERVICE_NAME", "erpbridge")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_ENABLED", false)

	entityTTLs, err := ParseEntityTTLs(v.GetString("CACHE_ENTITY_TTLS"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_ENTITY_TTLS: %w", err)
	}

	return &Config{
		Log: LogConfig{
			ServiceName: v.GetString("LOG_SERVICE_NAME"),
			Env:         v.GetString("ENV"),
			Level:       v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		ERP: ERPConfig{
			APIURL:            v.GetString("ERP_API_URL"),
			APIToken:          v.GetString("ERP_API_TOKEN"),
			UseMock:           v.GetBool("ERP_USE_MOCK"),
			AllowMockFallback: v.GetBool("ERP_ALLOW_MOCK_FALLBACK"),
			Timeout:           v.GetDuration("ERP_TIMEOUT"),
			RetryCooldown:     v.GetDuration("ERP_RETRY_COOLDOWN"),
			MaxSpanDays:       v.GetInt("ERP_MAX_SPAN_DAYS"),
			AvailabilityTTL:   v.GetDuration("ERP_AVAILABILITY_TTL"),
		},
		Cache: CacheConfig{
			EntityTTLs: entityTTLs,
		},
		Audit: AuditConfig{
			Stream: v.GetString("AUDIT_STREAM"),
			MaxLen: v.GetInt64("AUDIT_MAX_LEN"),
		},
		OTEL: OTELConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:       v.GetString("OTEL_ENDPOINT"),
			Enabled:        v.GetBool("OTEL_ENABLED"),
		},
	}, nil
}

// ParseEntityTTLs parses "type=duration" pairs separated by commas.
func ParseEntityTTLs(raw string) (map[string]time.Duration, error) {
	ttls := make(map[string]time.Duration)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not type=duration", pair)
		}
		ttl, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", pair, err)
		}
		ttls[strings.TrimSpace(name)] = ttl
	}
	return ttls, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
