package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Supported directory backends.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int

	StoreDriver   string
	DatabasePath  string // SQLite file, ":memory:" for an ephemeral store
	MongoURI      string
	MongoDatabase string

	UserTokenSecret  string
	AdminTokenSecret string
	TokenTTL         time.Duration // zero means tokens never expire
	BcryptCost       int

	RedisAddr        string // empty disables rate limiting
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	EventRetention   time.Duration
	HousekeepingCron string

	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	cost, err := getInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	limit, err := getInt("AUTH_RATE_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	ttl, err := getDuration("TOKEN_TTL", 0)
	if err != nil {
		return nil, err
	}
	window, err := getDuration("AUTH_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	retention, err := getDuration("EVENT_RETENTION", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:       port,
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		DatabasePath:     getEnv("DATABASE_PATH", "./accounts.db"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "accounts"),
		UserTokenSecret:  getEnv("USER_TOKEN_SECRET", ""),
		AdminTokenSecret: getEnv("ADMIN_TOKEN_SECRET", ""),
		TokenTTL:         ttl,
		BcryptCost:       cost,
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		AuthRateLimit:    limit,
		AuthRateWindow:   window,
		EventRetention:   retention,
		HousekeepingCron: getEnv("HOUSEKEEPING_CRON", "0 3 * * *"),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted safely.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.UserTokenSecret == "" || c.AdminTokenSecret == "" {
		return errors.New("USER_TOKEN_SECRET and ADMIN_TOKEN_SECRET must be set")
	}
	if c.UserTokenSecret == c.AdminTokenSecret {
		return errors.New("USER_TOKEN_SECRET and ADMIN_TOKEN_SECRET must differ")
	}
	if c.TokenTTL < 0 {
		return errors.New("TOKEN_TTL must not be negative")
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		return errors.New("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW must be positive")
	}
	if _, err := cron.ParseStandard(c.HousekeepingCron); err != nil {
		return fmt.Errorf("invalid HOUSEKEEPING_CRON: %w", err)
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
