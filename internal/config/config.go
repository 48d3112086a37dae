// Package config loads and validates client config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFollowUpURL is the form opened after every settled enrollment attempt.
const DefaultFollowUpURL = "https://docs.google.com/forms/d/e/1FAIpQLSfxVYIstqh-TuQKcE4JUYJm8eBqTXLgftN1fQYN8MNRuqlN3w/viewform?usp=header"

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Signup variants.
const (
	VariantBasic    = "basic"
	VariantExtended = "extended"
)

// Config holds client configuration loaded from the environment.
type Config struct {
	// APIBaseURL is the platform backend root (e.g. https://api.example.com); API paths are joined under it.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// APITimeout is an optional HTTP timeout (e.g. "30s"). Empty means the transport default (none).
	APITimeout string `mapstructure:"API_TIMEOUT"`

	// SessionStore selects the persistence adapter: memory, file, postgres or dynamodb.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// SessionFile is the file store path; empty means ~/.fxstreampro/session.json.
	SessionFile string `mapstructure:"SESSION_FILE"`
	// SessionPassphrase seals the file store at rest when set.
	SessionPassphrase string `mapstructure:"SESSION_PASSPHRASE"`
	// SessionNamespace partitions shared stores (postgres, dynamodb) between clients.
	SessionNamespace string `mapstructure:"SESSION_NAMESPACE"`
	// DatabaseURL is the Postgres DSN; required when SessionStore is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DynamoDBTable is the table used when SessionStore is dynamodb.
	DynamoDBTable string `mapstructure:"DYNAMODB_TABLE"`
	// DynamoDBEndpoint overrides the DynamoDB endpoint (e.g. http://localhost:8000 for dynamodb-local).
	DynamoDBEndpoint string `mapstructure:"DYNAMODB_ENDPOINT"`

	// SignupVariant selects the registration flow: basic or extended.
	SignupVariant string `mapstructure:"SIGNUP_VARIANT"`
	// FollowUpURL is opened after each settled enrollment attempt.
	FollowUpURL string `mapstructure:"ENROLL_FOLLOWUP_URL"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel resource service name.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of brokers; when set, activity events go to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the activity event topic.
	KafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// Worker-only: consumer group for the activity worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: Loki base URL (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment. In production the API base URL must use https.
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:5000")
	v.SetDefault("API_TIMEOUT", "")
	v.SetDefault("SESSION_STORE", StoreFile)
	v.SetDefault("SESSION_FILE", "")
	v.SetDefault("SESSION_PASSPHRASE", "")
	v.SetDefault("SESSION_NAMESPACE", "default")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DYNAMODB_TABLE", "fxstreampro-client-session")
	v.SetDefault("DYNAMODB_ENDPOINT", "")
	v.SetDefault("SIGNUP_VARIANT", VariantBasic)
	v.SetDefault("ENROLL_FOLLOWUP_URL", DefaultFollowUpURL)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "fxstreampro-client")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "fxstreampro-activity")
	v.SetDefault("KAFKA_GROUP_ID", "fxstreampro-activity-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.Env == "production" && u.Scheme != "https" {
		return errors.New("config: API_BASE_URL must use https when APP_ENV=production")
	}
	if c.APITimeout != "" {
		d, err := time.ParseDuration(c.APITimeout)
		if err != nil || d < 0 {
			return fmt.Errorf("config: API_TIMEOUT must be a non-negative duration, got %q", c.APITimeout)
		}
	}

	switch c.SessionStore {
	case StoreMemory, StoreFile:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return errors.New("config: DYNAMODB_TABLE must be set when SESSION_STORE=dynamodb")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be one of memory, file, postgres, dynamodb, got %q", c.SessionStore)
	}

	switch c.SignupVariant {
	case VariantBasic, VariantExtended:
	default:
		return fmt.Errorf("config: SIGNUP_VARIANT must be basic or extended, got %q", c.SignupVariant)
	}
	return nil
}

// Timeout parses APITimeout. Returns 0 (no timeout) if unset.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.APITimeout)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// SessionFilePath returns SessionFile, or ~/.fxstreampro/session.json when unset.
func (c *Config) SessionFilePath() string {
	if c.SessionFile != "" {
		return c.SessionFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".fxstreampro", "session.json")
	}
	return filepath.Join(home, ".fxstreampro", "session.json")
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means activity events are not sent to Kafka.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
