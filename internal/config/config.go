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
	AppEnv    string
	LogLevel  string
	LogFormat string

	HTTPPort       string
	GRPCPort       string
	PublicBaseURL  string
	RequestTimeout time.Duration

	// Ledger (postgres)
	DBHost              string
	DBPort              int
	DBUser              string
	DBPassword          string
	DBName              string
	LedgerMigrationsDir string

	// Catalog (sqlite)
	CatalogDBPath        string
	CatalogMigrationsDir string

	// Cart
	MongoURI      string
	MongoDBName   string
	RedisAddr     string
	RedisPass     string
	KafkaBrokers  []string
	StoreCurrency string

	// Payment processor
	PaymentSecretKey     string
	PaymentWebhookSecret string

	JWTSecret string

	ConfirmAttempts int
	ConfirmBackoff  time.Duration
}

// Load reads the environment (and a .env file when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", "50055"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),

		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              dbPort,
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "storefront"),
		LedgerMigrationsDir: getEnv("LEDGER_MIGRATIONS_PATH", "./internal/orders/repository/migrations"),

		CatalogDBPath:        getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrationsDir: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/repository/migrations"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "cartdb"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:     getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		StoreCurrency: strings.ToUpper(getEnv("STORE_CURRENCY", "EUR")),

		PaymentSecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ConfirmAttempts: getIntEnv("CHECKOUT_CONFIRM_ATTEMPTS", 10),
		ConfirmBackoff:  getDurationEnv("CHECKOUT_CONFIRM_BACKOFF", 500*time.Millisecond),
	}

	return cfg, nil
}

// RequireSecrets fails fast when the storefront is started without the values the
// checkout flow cannot run without.
func (c *Config) RequireSecrets() error {
	var missing []string
	if c.PaymentSecretKey == "" {
		missing = append(missing, "PAYMENT_SECRET_KEY")
	}
	if c.PaymentWebhookSecret == "" {
		missing = append(missing, "PAYMENT_WEBHOOK_SECRET")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
