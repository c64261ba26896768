package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StreakWindowElapsed  = "elapsed"
	StreakWindowCalendar = "calendar"
	LockBackendMemory    = "memory"
	LockBackendRedis     = "redis"
)

// Config holds runtime configuration sourced from env vars. Defaults target
// local development.
type Config struct {
	AppName string `validate:"required"`
	Env     string `validate:"oneof=development test staging production"`
	Port    string `validate:"required,numeric"`

	DBDriver   string `validate:"oneof=pgx postgres"`
	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBName     string `validate:"required"`
	DBSSLMode  string `validate:"oneof=disable require verify-ca verify-full"`

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	JWTSecret string        `validate:"required,min=16"`
	JWTIssuer string        `validate:"required"`
	JWTTTL    time.Duration `validate:"gt=0"`

	CORSAllowedOrigins []string

	RateLimit       int           `validate:"gte=0"`
	RateLimitWindow time.Duration `validate:"gt=0"`

	StreakWindow   string `validate:"oneof=elapsed calendar"`
	StreakTimezone string `validate:"required"`

	LockBackend string        `validate:"oneof=memory redis"`
	LockTTL     time.Duration `validate:"gt=0"`
	LockWait    time.Duration `validate:"gt=0"`

	RunMigrations bool
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func fromEnv() Config {
	return Config{
		AppName: getEnv("APP_NAME", "kanso-streak"),
		Env:     getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "pgx"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "kanso_user"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "kanso_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "kanso-streak"),
		JWTTTL:    getDuration("JWT_TTL", 24*time.Hour),

		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		RateLimit:       getInt("RATE_LIMIT", 100),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", time.Minute),

		StreakWindow:   strings.ToLower(getEnv("STREAK_WINDOW", StreakWindowElapsed)),
		StreakTimezone: getEnv("STREAK_TIMEZONE", "UTC"),

		LockBackend: strings.ToLower(getEnv("LOCK_BACKEND", LockBackendMemory)),
		LockTTL:     getDuration("LOCK_TTL", 5*time.Second),
		LockWait:    getDuration("LOCK_WAIT", 3*time.Second),

		RunMigrations: getBool("RUN_MIGRATIONS", false),
	}
}

var databaseFields = []string{"DBDriver", "DBHost", "DBPort", "DBUser", "DBName", "DBSSLMode"}

// LoadDatabase is Load for tools that only talk to Postgres; only the DB_*
// settings are validated.
func LoadDatabase() (Config, error) {
	_ = godotenv.Load()

	cfg := fromEnv()
	if err := validator.New().StructPartial(cfg, databaseFields...); err != nil {
		return Config{}, fmt.Errorf("invalid database configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.LockBackend == LockBackendRedis && !c.RedisEnabled() {
		return fmt.Errorf("invalid configuration: LOCK_BACKEND=redis requires REDIS_HOST")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid configuration: STREAK_TIMEZONE: %w", err)
	}

	return nil
}

func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.StreakTimezone)
}

func (c Config) DatabaseURL() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", c.DBHost, c.DBPort),
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
