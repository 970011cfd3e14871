package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("EVENT_DATE", "2025-10-31")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "10:00", cfg.OpeningTime)
	assert.Equal(t, "20:00", cfg.ClosingTime)
	assert.Equal(t, 30, cfg.SlotMinutes)
	assert.Equal(t, 15, cfg.TickMinutes)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.SlotSyncInterval)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("STORE", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/booking")
	t.Setenv("SLOT_MINUTES", "45")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://localhost/booking", cfg.GetDBDSN())
	assert.Equal(t, 45, cfg.SlotMinutes)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{name: "postgres without dsn", env: map[string]string{"STORE": "postgres"}, msg: "DB_DSN"},
		{name: "firestore without project", env: map[string]string{"STORE": "firestore"}, msg: "FIREBASE_PROJECT_ID"},
		{name: "mongo without uri", env: map[string]string{"STORE": "mongo"}, msg: "MONGO_URI"},
		{name: "unknown store", env: map[string]string{"STORE": "sqlite"}, msg: "unknown STORE"},
		{name: "missing event date", env: map[string]string{"EVENT_DATE": ""}, msg: "EVENT_DATE"},
		{name: "bad event date", env: map[string]string{"EVENT_DATE": "31/10/2025"}, msg: "EVENT_DATE"},
		{name: "closing before opening", env: map[string]string{"OPENING_TIME": "18:00", "CLOSING_TIME": "09:00"}, msg: "OPENING_TIME"},
		{name: "zero slot", env: map[string]string{"SLOT_MINUTES": "0"}, msg: "SLOT_MINUTES"},
		{name: "negative tick", env: map[string]string{"TICK_MINUTES": "-5"}, msg: "TICK_MINUTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
