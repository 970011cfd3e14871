package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/metrics"
	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
	"github.com/Freeeeeet/booking_bot/internal/repository/memory"
)

type SlotCacheTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	backend *memory.SlotStore
	store   *SlotStore
	metrics *metrics.Metrics
	ctx     context.Context
	testNow time.Time
}

func (s *SlotCacheTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.backend, _ = memory.NewStores()
	s.metrics = metrics.New()
	s.store = NewSlotStore(s.backend, s.client, time.Minute, s.metrics, zap.NewNop())
	s.ctx = context.Background()
	s.testNow = time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.backend.Create(s.ctx, &model.Slot{
		ID: "a", Date: "2025-10-31", Time: "10:00", DurationMinutes: 30, Available: true, CreatedAt: s.testNow,
	}))
}

func (s *SlotCacheTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestSlotCacheTestSuite(t *testing.T) {
	suite.Run(t, new(SlotCacheTestSuite))
}

func (s *SlotCacheTestSuite) TestListFillsCache() {
	s.False(s.mr.Exists(slotListKey))

	slots, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(slots, 1)
	s.True(s.mr.Exists(slotListKey))

	// Слот, добавленный в обход кеша, не виден до инвалидации
	s.Require().NoError(s.backend.Create(s.ctx, &model.Slot{ID: "b", Date: "2025-10-31", Time: "10:30", Available: true}))
	slots, err = s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(slots, 1)

	rec := httptest.NewRecorder()
	s.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Contains(rec.Body.String(), `booking_slot_cache_lookups_total{result="miss"} 1`+"\n")
	s.Contains(rec.Body.String(), `booking_slot_cache_lookups_total{result="hit"} 1`+"\n")
}

func (s *SlotCacheTestSuite) TestCacheExpires() {
	_, err := s.store.List(s.ctx)
	s.Require().NoError(err)

	s.mr.FastForward(2 * time.Minute)
	s.False(s.mr.Exists(slotListKey))
}

func (s *SlotCacheTestSuite) TestReserveInvalidates() {
	_, err := s.store.List(s.ctx)
	s.Require().NoError(err)

	_, err = s.store.Reserve(s.ctx, "a", model.Booker{Name: "Ana", Email: "ana@example.com", At: s.testNow}, nil)
	s.Require().NoError(err)
	s.False(s.mr.Exists(slotListKey))

	slots, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.False(slots[0].Available)
}

func (s *SlotCacheTestSuite) TestLostRaceInvalidates() {
	_, err := s.backend.Reserve(s.ctx, "a", model.Booker{Name: "First", At: s.testNow}, nil)
	s.Require().NoError(err)

	// В кеше устаревшая версия, где слот ещё свободен
	s.Require().NoError(s.mr.Set(slotListKey, `[{"id":"a","date":"2025-10-31","time":"10:00","available":true}]`))

	_, err = s.store.Reserve(s.ctx, "a", model.Booker{Name: "Second", At: s.testNow}, nil)
	s.ErrorIs(err, repository.ErrSlotAlreadyBooked)
	s.False(s.mr.Exists(slotListKey))

	slots, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.False(slots[0].Available)
}

func (s *SlotCacheTestSuite) TestCreateInvalidates() {
	_, err := s.store.List(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(s.ctx, &model.Slot{ID: "b", Date: "2025-10-31", Time: "10:30", Available: true}))
	s.False(s.mr.Exists(slotListKey))
}

func (s *SlotCacheTestSuite) TestRedisDownFallsBackToStore() {
	s.mr.Close()

	slots, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(slots, 1)
}

// pausedStore задерживает первый List после чтения из хранилища
type pausedStore struct {
	repository.SlotStore
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (p *pausedStore) List(ctx context.Context) ([]*model.Slot, error) {
	slots, err := p.SlotStore.List(ctx)
	p.once.Do(func() {
		close(p.listed)
		<-p.release
	})
	return slots, err
}

func (s *SlotCacheTestSuite) TestSlowListDoesNotRefillStaleSnapshot() {
	paused := &pausedStore{
		SlotStore: s.backend,
		listed:    make(chan struct{}),
		release:   make(chan struct{}),
	}
	store := NewSlotStore(paused, s.client, time.Minute, s.metrics, zap.NewNop())

	done := make(chan []*model.Slot)
	go func() {
		slots, err := store.List(s.ctx)
		s.NoError(err)
		done <- slots
	}()

	// Список прочитан, слот ещё свободен; бронь проходит до заполнения кеша
	<-paused.listed
	_, err := store.Reserve(s.ctx, "a", model.Booker{Name: "Ana", At: s.testNow}, nil)
	s.Require().NoError(err)
	close(paused.release)

	stale := <-done
	s.True(stale[0].Available)
	s.False(s.mr.Exists(slotListKey))

	slots, err := store.List(s.ctx)
	s.Require().NoError(err)
	s.False(slots[0].Available)
}

func (s *SlotCacheTestSuite) TestCacheKeepsNoContacts() {
	_, err := s.store.Reserve(s.ctx, "a", model.Booker{Name: "Ana", Email: "ana@example.com", Note: "catrina", At: s.testNow}, nil)
	s.Require().NoError(err)

	_, err = s.store.List(s.ctx)
	s.Require().NoError(err)

	raw, err := s.mr.Get(slotListKey)
	s.Require().NoError(err)
	s.Contains(raw, "Ana")
	s.NotContains(raw, "ana@example.com")
	s.NotContains(raw, "catrina")

	slots, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(slots[0].BookedBy)
	s.Equal("Ana", slots[0].BookedBy.Name)
	s.Empty(slots[0].BookedBy.Email)
}
