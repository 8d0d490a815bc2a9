package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultAPIURL = "http://localhost:5000/api"

// ErrMissingJWTSecret is returned by Validate outside local environments.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// unverifiedEnvironments may run without JWT_SECRET, trusting token claims unchecked.
var unverifiedEnvironments = map[string]bool{"local": true, "development": true, "test": true}

type Config struct {
	APIBaseURL       string
	ServerURL        string
	Port             string
	GRPCAddr         string
	JWTSecret        string
	SessionDriver    string
	SessionDSN       string
	AMQPURL          string
	LogsExchange     string
	EventsExchange   string
	ServiceName      string
	Environment      string
	RequestTimeout   time.Duration
	SuggestionsLimit int
	UsersLimit       int
	CORSOrigins      []string
	WorkspaceIdle    time.Duration
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to read .env: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	apiURL := strings.TrimRight(firstEnv(defaultAPIURL, "API_URL", "REACT_APP_API_URL"), "/")
	serverURL := strings.TrimRight(firstEnv(strings.TrimSuffix(apiURL, "/api"), "SERVER_URL", "REACT_APP_SERVER_URL"), "/")

	return Config{
		APIBaseURL:       apiURL,
		ServerURL:        serverURL,
		Port:             getEnv("PORT", "8080"),
		GRPCAddr:         getEnv("GRPC_ADDR", ":8085"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SessionDriver:    getEnv("SESSION_DRIVER", "sqlite3"),
		SessionDSN:       getEnv("SESSION_DSN", "portal-sessions.db"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		LogsExchange:     getEnv("LOGS_EXCHANGE", "logs.events"),
		EventsExchange:   getEnv("EVENTS_EXCHANGE", "app.events"),
		ServiceName:      getEnv("SERVICE_NAME", "portal-service"),
		Environment:      getEnv("ENVIRONMENT", "local"),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 10*time.Second),
		SuggestionsLimit: getInt("SUGGESTIONS_LIMIT", 10),
		UsersLimit:       getInt("USERS_LIMIT", 20),
		CORSOrigins:      getList("CORS_ORIGINS"),
		WorkspaceIdle:    getDuration("WORKSPACE_IDLE_TIMEOUT", 30*time.Minute),
	}
}

// Validate rejects configurations that would accept unsigned tokens in a shared environment.
func (c Config) Validate() error {
	if c.JWTSecret == "" && !unverifiedEnvironments[c.Environment] {
		return fmt.Errorf("%w in environment %q", ErrMissingJWTSecret, c.Environment)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Printf("warning: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.Printf("warning: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return value
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
