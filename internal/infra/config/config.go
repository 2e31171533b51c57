package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Adapter modes.
const (
	ModeMemory = "memory"
	ModeMongo  = "mongo"
	ModeStripe = "stripe"
	ModeGoogle = "google"
	ModeRedis  = "redis"
	ModeNone   = "none"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	StoreMode         string `envconfig:"STORE_MODE" default:"memory"`
	MongoURI          string `envconfig:"MONGO_URI"`
	MongoDB           string `envconfig:"MONGO_DB" default:"tinyhouse"`
	MongoTransactions bool   `envconfig:"MONGO_TRANSACTIONS" default:"false"`

	KafkaBrokers       []string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopicPrefix   string          `envconfig:"KAFKA_TOPIC_PREFIX"`
	KafkaConsumerGroup string          `envconfig:"KAFKA_CONSUMER_GROUP" default:"tinyhouse-booking"`
	OutboxPollInterval time.Duration   `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	RetryBackoff       []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,5s,30s"`
	IdempotencyTTL     time.Duration   `envconfig:"IDEMP_TTL" default:"168h"`

	PaymentsMode    string        `envconfig:"PAYMENTS_MODE" default:"memory"`
	StripeSecretKey string        `envconfig:"STRIPE_SECRET_KEY"`
	ChargeTimeout   time.Duration `envconfig:"CHARGE_TIMEOUT" default:"15s"`

	GeocoderMode  string `envconfig:"GEOCODER_MODE" default:"memory"`
	GoogleMapsKey string `envconfig:"GOOGLE_MAPS_KEY"`

	LockMode      string        `envconfig:"LOCK_MODE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	ReconcileInterval   time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	ReconcileStaleAfter time.Duration `envconfig:"RECONCILE_STALE_AFTER" default:"10m"`
	MaxStayDays         int           `envconfig:"MAX_STAY_DAYS" default:"0"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	FixturesPath string `envconfig:"FIXTURES_PATH"`
}

// Load parses configuration from the current environment. A .env file in the
// working directory is read first when present; real variables win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreMode = strings.ToLower(strings.TrimSpace(c.StoreMode))
	c.PaymentsMode = strings.ToLower(strings.TrimSpace(c.PaymentsMode))
	c.GeocoderMode = strings.ToLower(strings.TrimSpace(c.GeocoderMode))
	c.LockMode = strings.ToLower(strings.TrimSpace(c.LockMode))
	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers
}

// Validate checks mode names and the settings each mode depends on.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreMode {
	case ModeMemory:
	case ModeMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_MODE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_MODE %q", c.StoreMode))
	}
	switch c.PaymentsMode {
	case ModeMemory:
	case ModeStripe:
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENTS_MODE=stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENTS_MODE %q", c.PaymentsMode))
	}
	switch c.GeocoderMode {
	case ModeMemory:
	case ModeGoogle:
		if c.GoogleMapsKey == "" {
			errs = append(errs, errors.New("GOOGLE_MAPS_KEY is required when GEOCODER_MODE=google"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GEOCODER_MODE %q", c.GeocoderMode))
	}
	switch c.LockMode {
	case ModeNone, ModeMemory:
	case ModeRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when LOCK_MODE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_MODE %q", c.LockMode))
	}
	if c.KafkaEnabled() && c.StoreMode != ModeMongo {
		errs = append(errs, errors.New("KAFKA_BROKERS needs STORE_MODE=mongo for the outbox"))
	}
	if c.ChargeTimeout <= 0 {
		errs = append(errs, errors.New("CHARGE_TIMEOUT must be positive"))
	}
	if c.ReconcileStaleAfter <= c.ChargeTimeout {
		errs = append(errs, errors.New("RECONCILE_STALE_AFTER must exceed CHARGE_TIMEOUT"))
	}
	if c.MaxStayDays < 0 {
		errs = append(errs, errors.New("MAX_STAY_DAYS can't be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// KafkaEnabled reports whether events leave the process.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
