package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from its environment so main
// stays lean. Every field has a usable default for local development.
type Config struct {
	Addr string

	// RegistryPath is the directory for the durable block registry. When
	// empty the registry falls back to an in-memory store (tests, demos).
	RegistryPath string

	// ContactsPath points at a vCard file used for caller name lookup.
	ContactsPath string

	// IdentifyURL is the remote spam-identification endpoint. Only the
	// background dispatcher ever calls it, and only under IdentifyTimeout.
	IdentifyURL     string
	IdentifyTimeout time.Duration

	// ScreenBudget bounds a single screening decision. The platform treats
	// a late answer as allow, so the engine gives up well before that.
	ScreenBudget time.Duration

	// BridgeURL is the device bridge that receives notifications, deep
	// links, and telephony commands.
	BridgeURL string

	// PostgresURL enables the postgres call log store when set.
	PostgresURL string

	KafkaBrokers []string
	KafkaTopic   string

	// SpamAutoBlock enables blocking of locally flagged spam numbers in
	// addition to the user's manual block list.
	SpamAutoBlock bool

	Redis RedisConfig
}

// RedisConfig mirrors the connection knobs we expose for go-redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from QCALL_* environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("QCALL_ADDR", ":8080"),
		RegistryPath:    os.Getenv("QCALL_REGISTRY_PATH"),
		ContactsPath:    os.Getenv("QCALL_CONTACTS_PATH"),
		IdentifyURL:     os.Getenv("QCALL_IDENTIFY_URL"),
		IdentifyTimeout: envDuration("QCALL_IDENTIFY_TIMEOUT", 2*time.Second),
		ScreenBudget:    envDuration("QCALL_SCREEN_BUDGET", 250*time.Millisecond),
		BridgeURL:       os.Getenv("QCALL_BRIDGE_URL"),
		PostgresURL:     os.Getenv("QCALL_POSTGRES_URL"),
		KafkaTopic:      envOr("QCALL_KAFKA_TOPIC", "qcall.call-events"),
		SpamAutoBlock:   os.Getenv("QCALL_SPAM_AUTO_BLOCK") == "true",
		Redis: RedisConfig{
			URL:          os.Getenv("QCALL_REDIS_URL"),
			PoolSize:     envInt("QCALL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("QCALL_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("QCALL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("QCALL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("QCALL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if brokers := os.Getenv("QCALL_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
