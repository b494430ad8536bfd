package config

import "os"

// RelayConfig holds configuration for the outbox relay service.
// This is a minimal config that only includes what the relay needs.
type RelayConfig struct {
	DatabaseURL    string
	RabbitMQURL    string
	EventsExchange string
	HealthAddr     string
	LogLevel       string
	LogFormat      string
}

func LoadRelayConfig() *RelayConfig {
	LoadDotEnv()

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		panic("RABBITMQ_URL environment variable is required")
	}

	return &RelayConfig{
		DatabaseURL:    dbURL,
		RabbitMQURL:    rabbitURL,
		EventsExchange: getEnv("QUEUE_EVENTS_EXCHANGE", "ptm.queue.events"),
		HealthAddr:     getEnv("RELAY_HEALTH_ADDR", ":8090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}
}

// MigrateConfig is what cmd/migrate needs.
type MigrateConfig struct {
	DatabaseURL    string
	MigrationsPath string
	LogLevel       string
	LogFormat      string
}

func LoadMigrateConfig() *MigrateConfig {
	LoadDotEnv()

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	return &MigrateConfig{
		DatabaseURL:    dbURL,
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations/postgres"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}
