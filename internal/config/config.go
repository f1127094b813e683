package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Backend hosting the take/submit endpoints
	BackendURL     string
	BackendToken   string
	RequestTimeout time.Duration

	RedisURL string // empty disables the assessment cache
	CacheTTL time.Duration

	SessionTTL         time.Duration
	TimeWarningSeconds int
	ResultsBaseURL     string
	CORSOrigins        []string

	Events EventConfig
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		BackendURL:         getEnv("BACKEND_URL", "http://localhost:3000/api"),
		BackendToken:       getEnv("BACKEND_TOKEN", ""),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 15*time.Second),
		RedisURL:           getEnv("REDIS_URL", ""),
		CacheTTL:           getDuration("CACHE_TTL", 5*time.Minute),
		SessionTTL:         getDuration("SESSION_TTL", 6*time.Hour),
		TimeWarningSeconds: getInt("TIME_WARNING_SECONDS", 300),
		ResultsBaseURL:     getEnv("RESULTS_BASE_URL", "/results"),
		CORSOrigins:        getList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		Events: EventConfig{
			Enabled:      getBool("EVENTS_ENABLED", true),
			Publisher:    getEnv("EVENTS_PUBLISHER", "gochannel"),
			KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
			RunnerTopic:  getEnv("RUNNER_TOPIC", "assessment-runner"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
