package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// MigrationEnabled runs the embedded SQL migrations on start (postgres only).
	MigrationEnabled bool
	SeedSampleData   bool

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Secrets   SecretsConfig
	Face      FaceConfig

	GateProviderTimeout time.Duration
	HardwareTimeout     time.Duration
	GymConfigCacheTTL   time.Duration

	AccessPolicyPath string
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string

	OtelEnabled  bool
	OtelProtocol string
	// SamplingRatio applies outside development; development traces everything.
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	// Per facility gate, requests per second.
	AccessRate  int
	AccessBurst int
}

type SecretsConfig struct {
	// GymConfigSecret encrypts vendor credentials at rest.
	GymConfigSecret string
	QRSigningSecret string
}

type FaceConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "gymgate"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),

		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", true),
			OtelProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "gymgate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "gymgate.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		MigrationEnabled: getenvBool("MIGRATION_ENABLED", true),
		SeedSampleData:   getenvBool("SEED_SAMPLE_DATA", false),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			AccessRate:  getenvInt("RATE_LIMIT_ACCESS_RATE", 5),
			AccessBurst: getenvInt("RATE_LIMIT_ACCESS_BURST", 10),
		},
		Secrets: SecretsConfig{
			GymConfigSecret: strings.TrimSpace(getenv("GYM_CONFIG_SECRET", "")),
			QRSigningSecret: strings.TrimSpace(getenv("QR_SIGNING_SECRET", "")),
		},
		Face: FaceConfig{
			APIURL:  strings.TrimSpace(getenv("FACE_API_URL", "http://localhost:9090")),
			APIKey:  strings.TrimSpace(getenv("FACE_API_KEY", "")),
			Timeout: getenvDuration("FACE_API_TIMEOUT", 5*time.Second),
		},

		GateProviderTimeout: getenvDuration("GATE_PROVIDER_TIMEOUT", 5*time.Second),
		HardwareTimeout:     getenvDuration("HARDWARE_SYNC_TIMEOUT", 5*time.Second),
		GymConfigCacheTTL:   getenvDuration("GYM_CONFIG_CACHE_TTL", time.Minute),

		AccessPolicyPath: strings.TrimSpace(getenv("ACCESS_POLICY_PATH", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
