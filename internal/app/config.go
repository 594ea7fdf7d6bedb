package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"notes-serverless/internal/auth"
)

type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	LogLevel    string
	SentryDSN   string
	CronSecret  string

	AccessToken  auth.TokenConfig
	RefreshToken auth.TokenConfig
	BcryptCost   int

	InactivityThresholdDays int
	// SweepSchedule is a robfig/cron spec. Empty disables the in-process
	// scheduler.
	SweepSchedule string

	SigninRatePerMinute int
	SigninRateBurst     int

	// TrustProxyHeaders makes X-Forwarded-For the source of client IPs. Only
	// enable it behind a proxy that appends to the header.
	TrustProxyHeaders bool

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	ShutdownTimeout time.Duration
}

func LoadConfig() (Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	accessSecret, err := mustEnv("ACCESS_TOKEN_SECRET")
	if err != nil {
		return Config{}, err
	}
	refreshSecret, err := mustEnv("REFRESH_TOKEN_SECRET")
	if err != nil {
		return Config{}, err
	}
	if accessSecret == refreshSecret {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	devOverride := EnvBoolOrDefault("TOKEN_DEV_TTL_OVERRIDE", false)

	return Config{
		Env:         envOrDefault("APP_ENV", "development"),
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: databaseURL,
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		CronSecret:  strings.TrimSpace(os.Getenv("CRON_SECRET")),

		AccessToken: auth.TokenConfig{
			Secret:      accessSecret,
			TTL:         envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 60),
			DevOverride: devOverride,
		},
		RefreshToken: auth.TokenConfig{
			Secret:      refreshSecret,
			TTL:         envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
			DevOverride: devOverride,
		},
		BcryptCost: envIntOrDefault("BCRYPT_COST", auth.DefaultBcryptCost),

		InactivityThresholdDays: envIntOrDefault("INACTIVITY_THRESHOLD_DAYS", auth.DefaultInactivityThresholdDays),
		SweepSchedule:           envSetOrDefault("SWEEP_SCHEDULE", "@every 1h"),

		SigninRatePerMinute: envIntOrDefault("SIGNIN_RATE_LIMIT_PER_MINUTE", 10),
		SigninRateBurst:     envIntOrDefault("SIGNIN_RATE_LIMIT_BURST", 5),
		TrustProxyHeaders:   EnvBoolOrDefault("TRUST_PROXY_HEADERS", false),

		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),

		ShutdownTimeout: envSecondsOrDefault("SHUTDOWN_TIMEOUT_SECONDS", 15),
	}, nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

// envSetOrDefault only falls back when the variable is unset, so an explicit
// empty value survives.
func envSetOrDefault(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(value)
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
