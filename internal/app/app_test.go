package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/cache"
	"github.com/Freeeeeet/booking_bot/internal/config"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store:       config.StoreMemory,
		EventDate:   "2025-10-31",
		OpeningTime: "10:00",
		ClosingTime: "11:00",
		SlotMinutes: 30,
		TickMinutes: 15,
		CacheTTL:    time.Minute,
	}
}

func TestBuildMemoryApp(t *testing.T) {
	ctx := context.Background()

	a, err := Build(ctx, memoryConfig(), zap.NewNop(), BuildOptions{})
	require.NoError(t, err)
	defer a.Close()

	created, err := a.Service.GenerateSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	slots, err := a.Service.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	_, err = a.Service.ReserveSlot(ctx, slots[0].ID, service.Contact{Name: "Маша", Email: "masha@example.com"})
	require.NoError(t, err)

	_, err = a.Service.ReserveSlot(ctx, slots[0].ID, service.Contact{Name: "Петя", Email: "petya@example.com"})
	assert.True(t, service.IsConflict(err))
}

func TestBuildWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	a, err := Build(context.Background(), cfg, zap.NewNop(), BuildOptions{})
	require.NoError(t, err)
	defer a.Close()

	_, isCached := a.slots.(*cache.SlotStore)
	assert.True(t, isCached)

	_, err = a.Service.ListSlots(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists("booking:slots"))
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, zap.NewNop(), BuildOptions{})
	assert.Error(t, err)
}

func TestBuildRejectsUnknownStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store = "sqlite"

	_, err := Build(context.Background(), cfg, zap.NewNop(), BuildOptions{})
	assert.ErrorContains(t, err, "unknown store")
}

func TestBuildRejectsBadTick(t *testing.T) {
	cfg := memoryConfig()
	cfg.TickMinutes = 0

	_, err := Build(context.Background(), cfg, zap.NewNop(), BuildOptions{})
	assert.Error(t, err)
}
