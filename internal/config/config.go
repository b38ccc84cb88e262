package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DatabaseURL   string
	MigrationsDir string

	RedisURL string

	JWTSecret      string
	InternalSecret string

	MembershipStoreMode string

	AutoCompleteInterval     time.Duration
	NotificationDedupeWindow time.Duration
	NotificationQueueSize    int
	LocationJitterMeters     float64

	RateLimitRequests int
	RateLimitWindow   time.Duration

	MinIOEndpoint       string
	MinIOPublicEndpoint string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
	MinIOPublicUseSSL   bool

	MeiliURL       string
	MeiliMasterKey string
	MeiliIndex     string

	CORSOrigins string

	ResendAPIKey string
	FromEmail    string
	Domain       string

	DefaultLocale string
	LocaleDir     string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "db/migrations"),

		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		InternalSecret: getEnv("INTERNAL_SECRET", ""),

		MembershipStoreMode: getEnv("MEMBERSHIP_STORE_MODE", "transactional"),

		AutoCompleteInterval:     getDurationEnv("AUTO_COMPLETE_INTERVAL", 5*time.Minute),
		NotificationDedupeWindow: getDurationEnv("NOTIFICATION_DEDUPE_WINDOW", 10*time.Minute),
		NotificationQueueSize:    getIntEnv("NOTIFICATION_QUEUE_SIZE", 256),
		LocationJitterMeters:     getFloatEnv("LOCATION_JITTER_METERS", 300),

		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOPublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:         getEnv("MINIO_BUCKET", "activity-covers"),
		MinIOUseSSL:         getBoolEnv("MINIO_USE_SSL", false),
		MinIOPublicUseSSL:   getBoolEnv("MINIO_PUBLIC_USE_SSL", true),

		MeiliURL:       getEnv("MEILI_URL", ""),
		MeiliMasterKey: getEnv("MEILI_MASTER_KEY", ""),
		MeiliIndex:     getEnv("MEILI_INDEX", "activities"),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@example.com"),
		Domain:       getEnv("DOMAIN", "localhost:5173"),

		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		LocaleDir:     getEnv("LOCALE_DIR", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
