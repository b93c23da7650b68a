// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	id "khural/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
	// JWTSigningKey verifies bearer tokens issued by the identity service.
	JWTSigningKey string
	// BootstrapPrincipal is the founding principal allowed to appoint and
	// dissolve the provisional commission.
	BootstrapPrincipal id.PrincipalID
}

// Postgres captures the persistence connection settings.
type Postgres struct {
	DSN string
}

// Redis captures cache connection settings. An empty URL disables the
// tally cache and the service falls back to store reads.
type Redis struct {
	URL      string
	TallyTTL time.Duration
}

// Kafka captures the lifecycle-event publishing settings. Empty brokers
// disable the outbox worker.
type Kafka struct {
	Brokers []string
	Topic   string
	// OutboxPollInterval is how often the worker drains pending events.
	OutboxPollInterval time.Duration
}

// Config is the full runtime configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	cfg := Config{
		Server: Server{
			Addr:          envOr("KHURAL_ADDR", ":8080"),
			JWTSigningKey: envOr("KHURAL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("KHURAL_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:      os.Getenv("KHURAL_REDIS_URL"),
			TallyTTL: envDurationOr("KHURAL_TALLY_CACHE_TTL", 5*time.Second),
		},
		Kafka: Kafka{
			Topic:              envOr("KHURAL_KAFKA_TOPIC", "khural.election-events"),
			OutboxPollInterval: envDurationOr("KHURAL_OUTBOX_POLL_INTERVAL", 2*time.Second),
		},
	}

	if brokers := os.Getenv("KHURAL_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitCSV(brokers)
	}

	if raw := os.Getenv("KHURAL_BOOTSTRAP_PRINCIPAL"); raw != "" {
		if principal, err := id.ParsePrincipalID(raw); err == nil {
			cfg.Server.BootstrapPrincipal = principal
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
