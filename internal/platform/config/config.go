package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Evaluation tunables deliberately live here rather than as
// constants: the regression threshold and de-minimis default are
// tenant-operator decisions, not engine facts.
type Config struct {
	Addr          string
	JWTSigningKey string

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig

	Engine EngineConfig

	// RulePackPath optionally seeds the rule repository from a YAML pack at
	// startup. Empty means start with an empty repository.
	RulePackPath string

	// ControlListPath optionally loads the control list snapshot from a YAML
	// file at startup. Empty means no controlled origins.
	ControlListPath string

	// MasterDataPath optionally seeds the in-memory master data store from a
	// YAML file at startup.
	MasterDataPath string
}

// RedisConfig holds connection settings for the idempotency and replay store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds the decision and rule store connection settings.
type PostgresConfig struct {
	URL string
}

// KafkaConfig holds the audit/webhook emitter settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EngineConfig holds evaluation tunables.
type EngineConfig struct {
	// ResolveTimeout bounds master-data and rule-repository lookups. Past it
	// a line degrades to REVIEW with reason DEPENDENCY_TIMEOUT.
	ResolveTimeout time.Duration

	// DeMinimisDefaultPct is the controlled-content threshold applied when a
	// rule does not override it.
	DeMinimisDefaultPct float64

	// CanaryRegressionThreshold is the maximum allowed shift in the
	// BLOCK+REVIEW share of outcomes for a canary to be promotable.
	CanaryRegressionThreshold float64

	// IdempotencyWindow is how long a recorded decision answers replays.
	IdempotencyWindow time.Duration

	// ClaimTTL is how long an evaluation may hold an idempotency claim
	// before it is treated as abandoned.
	ClaimTTL time.Duration

	// ClaimWait bounds how long a duplicate request waits for the claim
	// holder to publish its decision.
	ClaimWait time.Duration
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	return Config{
		Addr:          getEnv("LICENSEIQ_ADDR", ":8080"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "licenseiq.determinations"),
		},
		Engine: EngineConfig{
			ResolveTimeout:            getEnvDuration("ENGINE_RESOLVE_TIMEOUT", 2*time.Second),
			DeMinimisDefaultPct:       getEnvFloat("ENGINE_DE_MINIMIS_PCT", 25.0),
			CanaryRegressionThreshold: getEnvFloat("ENGINE_CANARY_REGRESSION_THRESHOLD", 0.05),
			IdempotencyWindow:         getEnvDuration("ENGINE_IDEMPOTENCY_WINDOW", 24*time.Hour),
			ClaimTTL:                  getEnvDuration("ENGINE_CLAIM_TTL", 30*time.Second),
			ClaimWait:                 getEnvDuration("ENGINE_CLAIM_WAIT", 5*time.Second),
		},
		RulePackPath:    os.Getenv("RULE_PACK_PATH"),
		ControlListPath: os.Getenv("CONTROL_LIST_PATH"),
		MasterDataPath:  os.Getenv("MASTER_DATA_PATH"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
