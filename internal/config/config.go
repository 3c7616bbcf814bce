package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; durations accept time.ParseDuration syntax.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	DBMaxOpenConns    int           // pool size
	DBMaxIdleConns    int           // idle connections kept
	DBConnMaxLifetime time.Duration // recycle connections after this long

	JWTSecret string // secret used to verify JWTs

	Broker        string // "amqp" or "nats"
	AMQPURL       string // RabbitMQ URL
	NATSURL       string // NATS URL
	ConsumerGroup string // NATS queue group shared by replicas

	ValidationTimeout        time.Duration // restaurant/hours round trip deadline
	TableTimeout             time.Duration // table search round trip deadline
	CorrelationTTL           time.Duration // lifetime of registered but never awaited keys
	CorrelationSweepInterval time.Duration // how often abandoned keys are swept
	SweepInterval            time.Duration // how often reservations are expired/completed
	MaxInFlight              int           // concurrent lifecycle commands

	Policy ReservationPolicy
	Quota  QuotaConfig
}

// Load reads configuration values from the environment, after merging a
// .env file when one exists. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return Config{
		Env:    envStr("APP_ENV", "dev"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 80),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		JWTSecret: must("JWT_SECRET"),

		Broker:        envStr("BROKER", "amqp"),
		AMQPURL:       firstEnv("RABBITMQ_URL", "AMQP_URL"),
		NATSURL:       os.Getenv("NATS_URL"),
		ConsumerGroup: envStr("CONSUMER_GROUP", "table-reservation"),

		ValidationTimeout:        envDur("VALIDATION_TIMEOUT", 5*time.Second),
		TableTimeout:             envDur("TABLE_TIMEOUT", 10*time.Second),
		CorrelationTTL:           envDur("CORRELATION_TTL", time.Minute),
		CorrelationSweepInterval: envDur("CORRELATION_SWEEP_INTERVAL", 30*time.Second),
		SweepInterval:            envDur("SWEEP_INTERVAL", time.Minute),
		MaxInFlight:              envInt("MAX_IN_FLIGHT", 64),

		Policy: LoadReservationPolicy(),
		Quota:  LoadQuotaConfig(),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
