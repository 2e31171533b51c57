package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ModeMemory, cfg.StoreMode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.ChargeTimeout)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.False(t, cfg.KafkaEnabled())
}

func Test_Load_ParsesModesAndLists(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_MODE", " Mongo ")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("LOCK_MODE", "redis")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ModeMongo, cfg.StoreMode)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, ModeRedis, cfg.LockMode)
}

func Test_Validate_ModeRequirements(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"mongo_without_uri", Config{StoreMode: ModeMongo}, "MONGO_URI is required"},
		{"stripe_without_key", Config{PaymentsMode: ModeStripe}, "STRIPE_SECRET_KEY is required"},
		{"google_without_key", Config{GeocoderMode: ModeGoogle}, "GOOGLE_MAPS_KEY is required"},
		{"unknown_lock", Config{LockMode: "etcd"}, `unknown LOCK_MODE "etcd"`},
		{"stale_before_timeout", Config{ReconcileStaleAfter: time.Second}, "RECONCILE_STALE_AFTER must exceed CHARGE_TIMEOUT"},
		{"kafka_without_mongo", Config{KafkaBrokers: []string{"a:9092"}}, "KAFKA_BROKERS needs STORE_MODE=mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.cfg.StoreMode != "" {
				cfg.StoreMode = tt.cfg.StoreMode
			}
			if tt.cfg.PaymentsMode != "" {
				cfg.PaymentsMode = tt.cfg.PaymentsMode
			}
			if tt.cfg.GeocoderMode != "" {
				cfg.GeocoderMode = tt.cfg.GeocoderMode
			}
			if tt.cfg.LockMode != "" {
				cfg.LockMode = tt.cfg.LockMode
			}
			if len(tt.cfg.KafkaBrokers) > 0 {
				cfg.KafkaBrokers = tt.cfg.KafkaBrokers
			}
			if tt.cfg.ReconcileStaleAfter != 0 {
				cfg.ReconcileStaleAfter = tt.cfg.ReconcileStaleAfter
			}
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func valid() Config {
	return Config{
		StoreMode:           ModeMemory,
		PaymentsMode:        ModeMemory,
		GeocoderMode:        ModeMemory,
		LockMode:            ModeNone,
		ChargeTimeout:       15 * time.Second,
		ReconcileStaleAfter: 10 * time.Minute,
	}
}
