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
	Port        string
	Environment string
	LogLevel    string
	ServiceName string

	DatabaseURL        string
	DBMaxIdleConns     int
	DBMaxOpenConns     int
	DBConnMaxLifetime  time.Duration
	RedisURL           string
	JWTSecret          string
	JWTTTL             time.Duration
	CORSOrigins        []string
	RateLimitPerMinute int
	BulkExportLimit    int
	OTLPEndpoint       string
	OTLPInsecure       bool

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	ExportDir          string
}

// Load reads an optional .env file and then the process environment. Values
// already present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:               readString("PORT", "8080"),
		Environment:        readString("APP_ENV", "development"),
		LogLevel:           readString("LOG_LEVEL", "info"),
		ServiceName:        readString("SERVICE_NAME", "clearinghouse-api"),
		DatabaseURL:        databaseURL(),
		DBMaxIdleConns:     readInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:     readInt("DB_MAX_OPEN_CONNS", 100),
		DBConnMaxLifetime:  readDurationSeconds("DB_CONN_MAX_LIFETIME_SECONDS", 3600),
		RedisURL:           readString("REDIS_URL", "redis://redis:6379"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTL:             time.Duration(readInt("JWT_TTL_HOURS", 24*7)) * time.Hour,
		CORSOrigins:        readList("CORS_ORIGINS", []string{"*"}),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MINUTE", 300),
		BulkExportLimit:    readInt("BULK_EXPORT_LIMIT", 5000),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		AWSRegion:          os.Getenv("AWS_REGION"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:           os.Getenv("AWS_S3_BUCKET"),
		ExportDir:          readString("EXPORT_DIR", "/app/exports"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or DB_HOST is required")
	}
	return cfg, nil
}

// UseS3 reports whether export files go to S3 rather than local disk.
func (c Config) UseS3() bool {
	return c.AWSRegion != "" && c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" && c.S3Bucket != ""
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		readString("DB_PORT", "5432"),
		readString("DB_SSLMODE", "disable"),
	)
}

func readString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func readList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
