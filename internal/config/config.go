package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	// Optional quiz read cache. Empty RedisAddr disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QuizCacheTTL  time.Duration

	AuthHMACSecret string
	TokenTTL       time.Duration

	CORSOrigins []string
}

// FromEnv loads .env (if present) and builds the config from environment
// variables with development defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		QuizCacheTTL:  envDuration("QUIZ_CACHE_TTL", 5*time.Minute),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:       envDuration("TOKEN_TTL", 8*time.Hour),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
