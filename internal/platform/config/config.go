// Package config reads process configuration from the environment so main
// stays lean. Every value has a development default except the external
// service credentials, which are empty unless configured.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "carebridge/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// RateLimit caps requests per client per minute. Zero disables limiting.
	RateLimit int
}

// Postgres captures the identity store connection.
type Postgres struct {
	URL string
}

// Redis captures the draft store connection.
type Redis struct {
	URL string
}

// Kafka captures the audit stream connection.
type Kafka struct {
	Brokers  []string
	ClientID string
}

// Provider captures the external identity provider endpoints.
type Provider struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Issuer       string
}

// Subscription captures the streaming subscription service endpoints.
type Subscription struct {
	BaseURL string
	APIKey  string
}

// Notify captures the notification webhook.
type Notify struct {
	URL string
}

// Config is the full process configuration.
type Config struct {
	Server       Server
	Postgres     Postgres
	Redis        Redis
	Kafka        Kafka
	Provider     Provider
	Subscription Subscription
	Notify       Notify
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("CAREBRIDGE_ADDR", ":8080"),
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       envInt("CAREBRIDGE_RATE_LIMIT", 0),
		},
		Postgres: Postgres{
			URL: os.Getenv("CAREBRIDGE_POSTGRES_URL"),
		},
		Redis: Redis{
			URL: os.Getenv("CAREBRIDGE_REDIS_URL"),
		},
		Kafka: Kafka{
			Brokers:  splitList(os.Getenv("CAREBRIDGE_KAFKA_BROKERS")),
			ClientID: envOr("CAREBRIDGE_KAFKA_CLIENT_ID", "carebridge"),
		},
		Provider: Provider{
			BaseURL:      os.Getenv("CAREBRIDGE_IDP_BASE_URL"),
			TokenURL:     os.Getenv("CAREBRIDGE_IDP_TOKEN_URL"),
			ClientID:     os.Getenv("CAREBRIDGE_IDP_CLIENT_ID"),
			ClientSecret: os.Getenv("CAREBRIDGE_IDP_CLIENT_SECRET"),
			Scope:        os.Getenv("CAREBRIDGE_IDP_SCOPE"),
			Issuer:       os.Getenv("CAREBRIDGE_IDP_ISSUER"),
		},
		Subscription: Subscription{
			BaseURL: os.Getenv("CAREBRIDGE_SUBSCRIPTION_BASE_URL"),
			APIKey:  os.Getenv("CAREBRIDGE_SUBSCRIPTION_API_KEY"),
		},
		Notify: Notify{
			URL: os.Getenv("CAREBRIDGE_NOTIFY_URL"),
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(raw, ","))
}
