package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"facturasv/pkg/domain"
)

// Config captures everything main needs to wire the pipeline. Values come
// from environment variables so main stays lean.
type Config struct {
	Addr        string
	Environment domain.Environment

	MH       MHConfig
	Signer   SignerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	// ContingencyProbeInterval is how often the drainer checks whether the
	// MH is reachable again while entries are queued.
	ContingencyProbeInterval time.Duration
}

// MHConfig holds the authority endpoints and submission policy.
type MHConfig struct {
	AuthURL        string
	ReceptionURL   string
	QueryURL       string
	InvalidateURL  string
	ContingencyURL string

	NIT      string // taxpayer NIT used as the auth user
	Password string // Oficina Virtual password

	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration

	// TokenSafetyMargin is subtracted from the token expiry before a cached
	// token is considered stale.
	TokenSafetyMargin time.Duration
}

// SignerConfig locates the issuer's .p12 credential.
type SignerConfig struct {
	KeystorePath     string
	KeystorePassword string
	// MaxDocumentBytes is the authority's size ceiling for a canonical DTE.
	MaxDocumentBytes int
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// mhURLs mirrors the authority's published endpoint table per environment.
var mhURLs = map[domain.Environment]MHConfig{
	domain.EnvTest: {
		AuthURL:        "https://apitest.dtes.mh.gob.sv/seguridad/auth",
		ReceptionURL:   "https://apitest.dtes.mh.gob.sv/fesv/recepciondte",
		QueryURL:       "https://apitest.dtes.mh.gob.sv/fesv/recepcion/consultadte/",
		InvalidateURL:  "https://apitest.dtes.mh.gob.sv/fesv/anulardte",
		ContingencyURL: "https://apitest.dtes.mh.gob.sv/fesv/contingencia",
	},
	domain.EnvProduction: {
		AuthURL:        "https://api.dtes.mh.gob.sv/seguridad/auth",
		ReceptionURL:   "https://api.dtes.mh.gob.sv/fesv/recepciondte",
		QueryURL:       "https://api.dtes.mh.gob.sv/fesv/recepcion/consultadte/",
		InvalidateURL:  "https://api.dtes.mh.gob.sv/fesv/anulardte",
		ContingencyURL: "https://api.dtes.mh.gob.sv/fesv/contingencia",
	},
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	env := domain.EnvTest
	if parsed, err := domain.ParseEnvironment(os.Getenv("MH_ENVIRONMENT")); err == nil {
		env = parsed
	}

	mh := mhURLs[env]
	mh.NIT = os.Getenv("MH_NIT")
	mh.Password = os.Getenv("MH_PASSWORD")
	mh.RequestTimeout = durationEnv("MH_REQUEST_TIMEOUT", 60*time.Second)
	mh.MaxAttempts = intEnv("MH_MAX_ATTEMPTS", 4)
	mh.BackoffBase = durationEnv("MH_BACKOFF_BASE", 2*time.Second)
	mh.BackoffCap = durationEnv("MH_BACKOFF_CAP", 60*time.Second)
	// Tokens are valid 24h in production and 48h in test; two hours of margin
	// keeps a long submission burst from racing the expiry.
	mh.TokenSafetyMargin = durationEnv("MH_TOKEN_SAFETY_MARGIN", 2*time.Hour)

	addr := os.Getenv("FACTURASV_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Config{
		Addr:        addr,
		Environment: env,
		MH:          mh,
		Signer: SignerConfig{
			KeystorePath:     os.Getenv("SIGNER_KEYSTORE_PATH"),
			KeystorePassword: os.Getenv("SIGNER_KEYSTORE_PASSWORD"),
			MaxDocumentBytes: intEnv("SIGNER_MAX_DOCUMENT_BYTES", 1<<20),
		},
		Postgres: PostgresConfig{DSN: os.Getenv("POSTGRES_DSN")},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitEnv("KAFKA_BROKERS"),
			Topic:   stringEnv("KAFKA_LIFECYCLE_TOPIC", "dte.lifecycle"),
		},
		ContingencyProbeInterval: durationEnv("CONTINGENCY_PROBE_INTERVAL", 30*time.Second),
	}
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
