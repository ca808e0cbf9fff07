package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret signs tokens when JWT_SECRET is unset. It is public and only
// fit for local development.
const DevJWTSecret = "change-me"

// Config is the process configuration, built once at startup and passed
// explicitly to the components that need it.
type Config struct {
	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	Database DatabaseConfig
	Log      struct {
		Level  string
		Format string
	}
	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}
	CORS struct {
		AllowedOrigins []string
	}
	MigrateOnStart bool
}

// DatabaseConfig describes how to reach Postgres. URL wins over the discrete
// fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
}

// DSN renders the connection string handed to pgxpool.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(c.MaxConns))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Load reads the environment, seeding it from a .env file in the working
// directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8000")
	cfg.HTTP.ShutdownTimeout = parseDuration(getEnv("HTTP_SHUTDOWN_TIMEOUT", "10s"), 10*time.Second)

	cfg.Database.URL = getEnv("DATABASE_URL", "")
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "crm")
	cfg.Database.Password = getEnv("DB_PASSWORD", "crm")
	cfg.Database.Name = getEnv("DB_NAME", "crm")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", DevJWTSecret)
	cfg.Auth.TokenTTL = parseDuration(getEnv("JWT_TTL", "24h"), 24*time.Hour)

	cfg.CORS.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:4200,http://127.0.0.1:4200,http://localhost:5173,http://127.0.0.1:5173"))

	cfg.MigrateOnStart = getEnv("MIGRATE_ON_START", "false") == "true"

	return cfg
}

// UsesDevJWTSecret reports whether tokens would be signed with DevJWTSecret.
func (c *Config) UsesDevJWTSecret() bool {
	return c.Auth.JWTSecret == DevJWTSecret
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
