package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// PostgresURL selects the Postgres-backed stores; empty runs on the
	// in-memory stores.
	PostgresURL string

	// RedisURL enables the template-resolution cache; empty disables it.
	RedisURL         string
	TemplateCacheTTL time.Duration

	// KafkaBrokers enables the lifecycle event stream; empty keeps events
	// in memory.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("AUDITFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	topic := os.Getenv("AUDITFLOW_KAFKA_TOPIC")
	if topic == "" {
		topic = "auditflow.lifecycle"
	}
	var brokers []string
	if raw := os.Getenv("AUDITFLOW_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	return Server{
		Addr:             addr,
		PostgresURL:      os.Getenv("AUDITFLOW_POSTGRES_URL"),
		RedisURL:         os.Getenv("AUDITFLOW_REDIS_URL"),
		TemplateCacheTTL: 5 * time.Minute,
		KafkaBrokers:     brokers,
		KafkaTopic:       topic,
	}
}
