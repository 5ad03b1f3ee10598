// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SQLitePath string
}

type Config struct {
	HTTPAddr     string
	DB           DBConfig
	RedisAddr    string
	JWTSecret    string
	SessionTTL   time.Duration
	CORSOrigins  []string
	QuizCacheTTL time.Duration

	// EligibilityFailClosed blocks attempts when the attempt history cannot be read.
	EligibilityFailClosed bool
}

const (
	httpAddr              = "HTTP_ADDR"
	dbDriver              = "DB_DRIVER"
	dbHost                = "DB_HOST"
	dbPort                = "DB_PORT"
	dbUser                = "DB_USER"
	dbPassword            = "DB_PASSWORD"
	dbName                = "DB_NAME"
	sqlitePath            = "SQLITE_PATH"
	redisAddr             = "REDIS_ADDR"
	jwtSecret             = "JWT_SECRET"
	sessionTTL            = "SESSION_TTL"
	corsOrigins           = "CORS_ORIGINS"
	quizCacheTTL          = "QUIZ_CACHE_TTL"
	eligibilityFailClosed = "ELIGIBILITY_FAIL_CLOSED"
)

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using process environment")
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		HTTPAddr: get(httpAddr, ":8080"),
		DB: DBConfig{
			Driver:     strings.ToLower(get(dbDriver, "postgres")),
			Host:       get(dbHost, "localhost"),
			Port:       get(dbPort, "5432"),
			User:       get(dbUser, "postgres"),
			Password:   getenv(dbPassword),
			Name:       get(dbName, "bioboost"),
			SQLitePath: get(sqlitePath, "bioboost.db"),
		},
		RedisAddr: get(redisAddr, "localhost:6379"),
		JWTSecret: getenv(jwtSecret),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing environment variable: %s", jwtSecret)
	}

	switch cfg.DB.Driver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("%s: unsupported driver %q", dbDriver, cfg.DB.Driver)
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(get(sessionTTL, "24h")); err != nil {
		return Config{}, fmt.Errorf("%s: %w", sessionTTL, err)
	}
	if cfg.QuizCacheTTL, err = time.ParseDuration(get(quizCacheTTL, "10m")); err != nil {
		return Config{}, fmt.Errorf("%s: %w", quizCacheTTL, err)
	}
	if cfg.EligibilityFailClosed, err = strconv.ParseBool(get(eligibilityFailClosed, "false")); err != nil {
		return Config{}, fmt.Errorf("%s: %w", eligibilityFailClosed, err)
	}

	for _, origin := range strings.Split(get(corsOrigins, "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	return cfg, nil
}
