package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	HandoffBackendDB    = "db"
	HandoffBackendRedis = "redis"
)

var (
	PORT        string
	DB_URL      string
	JWT_SECRET  string
	APP_URL     string
	CORS_ORIGIN string

	STRIPE_SECRET_KEY     string
	STRIPE_WEBHOOK_SECRET string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string

	HANDOFF_BACKEND string
	REDIS_ADDR      string
	REDIS_DB        int

	KAFKA_BROKERS []string
	KAFKA_TOPIC   string

	HANDOFF_TTL       time.Duration
	HANDOFF_RETENTION time.Duration
	GATEWAY_TIMEOUT   time.Duration
	GATEWAY_ATTEMPTS  int
	SWEEP_INTERVAL    time.Duration

	ACCESS_TOKEN_TTL  time.Duration
	REFRESH_TOKEN_TTL time.Duration
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	APP_URL = strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "http://localhost:5173")

	STRIPE_SECRET_KEY = mustEnv("STRIPE_SECRET_KEY")
	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")

	// Google sign-in is optional; the routes answer 503 when unset.
	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")

	HANDOFF_BACKEND = getEnv("HANDOFF_BACKEND", HandoffBackendDB)
	if HANDOFF_BACKEND != HandoffBackendDB && HANDOFF_BACKEND != HandoffBackendRedis {
		log.Fatalf("HANDOFF_BACKEND must be %q or %q, got %q", HandoffBackendDB, HandoffBackendRedis, HANDOFF_BACKEND)
	}
	REDIS_ADDR = getEnv("REDIS_ADDR", "localhost:6379")
	REDIS_DB = mustInt("REDIS_DB", 0)

	KAFKA_BROKERS = splitCSV(getEnv("KAFKA_BROKERS", ""))
	KAFKA_TOPIC = getEnv("KAFKA_TOPIC", "credit-orders")

	HANDOFF_TTL = mustDuration("HANDOFF_TTL", 10*time.Minute)
	HANDOFF_RETENTION = mustDuration("HANDOFF_RETENTION", time.Hour)
	GATEWAY_TIMEOUT = mustDuration("GATEWAY_TIMEOUT", 5*time.Second)
	GATEWAY_ATTEMPTS = mustInt("GATEWAY_ATTEMPTS", 3)
	SWEEP_INTERVAL = mustDuration("SWEEP_INTERVAL", time.Minute)

	ACCESS_TOKEN_TTL = mustDuration("ACCESS_TOKEN_TTL", 24*time.Hour)
	REFRESH_TOKEN_TTL = mustDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)

	if GATEWAY_ATTEMPTS <= 0 {
		log.Fatal("GATEWAY_ATTEMPTS must be > 0")
	}
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func mustDuration(key string, fallback time.Duration) time.Duration {
	d, err := parseDuration(os.Getenv(key), fallback)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return d
}

func mustInt(key string, fallback int) int {
	n, err := parseInt(os.Getenv(key), fallback)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

// parseDuration accepts Go duration syntax ("90s", "10m"); empty means fallback.
func parseDuration(v string, fallback time.Duration) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, strconv.ErrRange
	}
	return d, nil
}

func parseInt(v string, fallback int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
