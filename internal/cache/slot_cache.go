// Package cache кеширует список слотов в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/metrics"
	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
)

const (
	slotListKey    = "booking:slots"
	slotVersionKey = "booking:slots:version"
)

// NewRedisClient создаёт клиента и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// SlotStore оборачивает repository.SlotStore и кеширует List.
// Любая запись (в том числе проигранная гонка) увеличивает версию списка
// и сбрасывает кеш. Заполнение кеша проходит только если версия не менялась
// с момента чтения из хранилища, поэтому медленный List не может вернуть
// в кеш снимок, устаревший после чужой брони.
// В кеше лежат только публичные поля: контакты бронирующих в Redis не попадают.
type SlotStore struct {
	next    repository.SlotStore
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewSlotStore(next repository.SlotStore, client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *SlotStore {
	return &SlotStore{
		next:    next,
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

// cachedSlot публичная часть слота
type cachedSlot struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`
	BookedName      string    `json:"booked_name,omitempty"`
	BookedAt        time.Time `json:"booked_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func toCached(slots []*model.Slot) []cachedSlot {
	out := make([]cachedSlot, 0, len(slots))
	for _, slot := range slots {
		c := cachedSlot{
			ID:              slot.ID,
			Date:            slot.Date,
			Time:            slot.Time,
			DurationMinutes: slot.DurationMinutes,
			Available:       slot.Available,
			CreatedAt:       slot.CreatedAt,
		}
		if slot.BookedBy != nil {
			c.BookedName = slot.BookedBy.Name
			c.BookedAt = slot.BookedBy.At
		}
		out = append(out, c)
	}
	return out
}

func fromCached(cached []cachedSlot) []*model.Slot {
	slots := make([]*model.Slot, 0, len(cached))
	for _, c := range cached {
		slot := &model.Slot{
			ID:              c.ID,
			Date:            c.Date,
			Time:            c.Time,
			DurationMinutes: c.DurationMinutes,
			Available:       c.Available,
			CreatedAt:       c.CreatedAt,
		}
		if !c.Available {
			slot.BookedBy = &model.Booker{Name: c.BookedName, At: c.BookedAt}
		}
		slots = append(slots, slot)
	}
	return slots
}

func (s *SlotStore) List(ctx context.Context) ([]*model.Slot, error) {
	data, err := s.client.Get(ctx, slotListKey).Bytes()
	switch {
	case err == nil:
		var cached []cachedSlot
		uerr := json.Unmarshal(data, &cached)
		if uerr == nil {
			s.metrics.CacheLookup(true)
			return fromCached(cached), nil
		}
		s.logger.Warn("Corrupted slot cache entry, reloading", zap.Error(uerr))
	case errors.Is(err, redis.Nil):
	default:
		// Кеш недоступен, читаем из хранилища напрямую
		s.logger.Warn("Slot cache read failed", zap.Error(err))
	}
	s.metrics.CacheLookup(false)

	// Версию читаем до хранилища: запись, случившаяся между чтением
	// и заполнением, её изменит
	version, verr := s.version(ctx)

	slots, err := s.next.List(ctx)
	if err != nil {
		return nil, err
	}

	if verr == nil {
		s.fill(ctx, version, slots)
	}

	return slots, nil
}

func (s *SlotStore) version(ctx context.Context) (int64, error) {
	v, err := s.client.Get(ctx, slotVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// fill кладёт список в кеш, если версия не изменилась после чтения
func (s *SlotStore) fill(ctx context.Context, version int64, slots []*model.Slot) {
	data, err := json.Marshal(toCached(slots))
	if err != nil {
		return
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, slotVersionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, slotListKey, data, s.ttl)
			return nil
		})
		return err
	}, slotVersionKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		s.logger.Warn("Slot cache write failed", zap.Error(err))
	}
}

func (s *SlotStore) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	return s.next.GetByID(ctx, id)
}

func (s *SlotStore) Exists(ctx context.Context, date, clock string) (bool, error) {
	return s.next.Exists(ctx, date, clock)
}

func (s *SlotStore) Create(ctx context.Context, slot *model.Slot) error {
	if err := s.next.Create(ctx, slot); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *SlotStore) Reserve(ctx context.Context, id string, booker model.Booker, check repository.SlotCheck) (*model.Slot, error) {
	slot, err := s.next.Reserve(ctx, id, booker, check)
	if err == nil || errors.Is(err, repository.ErrSlotAlreadyBooked) {
		s.invalidate(ctx)
	}
	return slot, err
}

func (s *SlotStore) invalidate(ctx context.Context) {
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, slotVersionKey)
	pipe.Del(ctx, slotListKey)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Slot cache invalidation failed", zap.Error(err))
	}
}
