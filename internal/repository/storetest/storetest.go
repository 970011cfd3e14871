// Package storetest содержит общие проверки для всех реализаций хранилищ.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/booking_bot/internal/availability"
	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
)

const eventDate = "2025-10-31"

var testNow = time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)

func newSlot(date, clock string) *model.Slot {
	return &model.Slot{
		ID:              uuid.NewString(),
		Date:            date,
		Time:            clock,
		DurationMinutes: 30,
		Available:       true,
		CreatedAt:       testNow,
	}
}

// SlotStore прогоняет контракт repository.SlotStore.
// newStore должен возвращать пустое хранилище.
func SlotStore(t *testing.T, newStore func(t *testing.T) repository.SlotStore) {
	ctx := context.Background()

	t.Run("ListOrderedByDateThenTime", func(t *testing.T) {
		store := newStore(t)
		for _, s := range []*model.Slot{
			newSlot(eventDate, "11:00"),
			newSlot("2025-10-30", "18:30"),
			newSlot(eventDate, "10:30"),
		} {
			require.NoError(t, store.Create(ctx, s))
		}

		slots, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, slots, 3)

		got := make([]string, 0, len(slots))
		for _, s := range slots {
			got = append(got, s.Date+" "+s.Time)
		}
		assert.Equal(t, []string{"2025-10-30 18:30", "2025-10-31 10:30", "2025-10-31 11:00"}, got)
	})

	t.Run("CreateRejectsSameDateTime", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, newSlot(eventDate, "10:00")))

		err := store.Create(ctx, newSlot(eventDate, "10:00"))
		assert.ErrorIs(t, err, repository.ErrSlotExists)

		exists, err := store.Exists(ctx, eventDate, "10:00")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.Exists(ctx, eventDate, "10:30")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ReserveMarksUnavailable", func(t *testing.T) {
		store := newStore(t)
		slot := newSlot(eventDate, "10:00")
		require.NoError(t, store.Create(ctx, slot))

		booker := model.Booker{Name: "Ana", Email: "ana@example.com", Note: "catrina", At: testNow}
		reserved, err := store.Reserve(ctx, slot.ID, booker, nil)
		require.NoError(t, err)
		assert.False(t, reserved.Available)
		require.NotNil(t, reserved.BookedBy)
		assert.Equal(t, "Ana", reserved.BookedBy.Name)

		stored, err := store.GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.False(t, stored.Available)
		require.NotNil(t, stored.BookedBy)
		assert.Equal(t, "ana@example.com", stored.BookedBy.Email)

		_, err = store.Reserve(ctx, slot.ID, booker, nil)
		assert.ErrorIs(t, err, repository.ErrSlotAlreadyBooked)
	})

	t.Run("ReserveUnknownSlot", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Reserve(ctx, uuid.NewString(), model.Booker{Name: "Ana", At: testNow}, nil)
		assert.ErrorIs(t, err, repository.ErrSlotNotFound)

		_, err = store.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrSlotNotFound)
	})

	t.Run("ConcurrentReserveExactlyOneCommits", func(t *testing.T) {
		store := newStore(t)
		slot := newSlot(eventDate, "10:00")
		require.NoError(t, store.Create(ctx, slot))

		results := race(8, func(i int) error {
			_, err := store.Reserve(ctx, slot.ID, model.Booker{Name: "racer", At: testNow}, nil)
			return err
		})

		assert.Equal(t, 1, results.ok)
		assert.Equal(t, 7, results.count(repository.ErrSlotAlreadyBooked))
	})
}

// ReservationStore прогоняет контракт repository.ReservationStore
func ReservationStore(t *testing.T, newStore func(t *testing.T) repository.ReservationStore) {
	ctx := context.Background()
	checker, err := availability.NewChecker(15)
	require.NoError(t, err)

	newReservation := func(start string, duration int, email string) *model.Reservation {
		return &model.Reservation{
			ID:              uuid.NewString(),
			Date:            eventDate,
			StartTime:       start,
			DurationMinutes: duration,
			Name:            "guest",
			Email:           email,
			Note:            "catrina",
			Confirmed:       true,
			CreatedAt:       testNow,
		}
	}

	create := func(store repository.ReservationStore, r *model.Reservation) error {
		return store.CreateChecked(ctx, r, func(existing []*model.Reservation) error {
			return checker.Check(r, existing)
		})
	}

	t.Run("CreateAndList", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, create(store, newReservation("11:00", 30, "b@example.com")))
		require.NoError(t, create(store, newReservation("10:00", 30, "a@example.com")))

		list, err := store.ListByDate(ctx, eventDate)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "10:00", list[0].StartTime)
		assert.Equal(t, "11:00", list[1].StartTime)

		other, err := store.ListByDate(ctx, "2025-11-01")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("OverlapRejected", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, create(store, newReservation("10:00", 60, "a@example.com")))

		err := create(store, newReservation("10:45", 30, "b@example.com"))
		assert.ErrorIs(t, err, availability.ErrOverlap)

		list, err := store.ListByDate(ctx, eventDate)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("ConcurrentOverlappingExactlyOneCommits", func(t *testing.T) {
		store := newStore(t)

		results := race(8, func(i int) error {
			// Разные люди, пересекающиеся диапазоны 10:00-11:00 .. 10:35-11:35
			start := availability.FormatClock(10*60 + i*5)
			return create(store, newReservation(start, 60, uuid.NewString()+"@example.com"))
		})

		assert.Equal(t, 1, results.ok)
		assert.Equal(t, 7, results.count(availability.ErrOverlap))

		list, err := store.ListByDate(ctx, eventDate)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

// MixedVariants проверяет, что слоты и брони одной даты не пересекаются.
// newStores должен возвращать пару пустых хранилищ над общими данными.
func MixedVariants(t *testing.T, newStores func(t *testing.T) (repository.SlotStore, repository.ReservationStore)) {
	ctx := context.Background()
	checker, err := availability.NewChecker(15)
	require.NoError(t, err)

	createRange := func(store repository.ReservationStore, start string, duration int, email string) error {
		r := &model.Reservation{
			ID:              uuid.NewString(),
			Date:            eventDate,
			StartTime:       start,
			DurationMinutes: duration,
			Name:            "guest",
			Email:           email,
			Note:            "catrina",
			Confirmed:       true,
			CreatedAt:       testNow,
		}
		return store.CreateChecked(ctx, r, func(existing []*model.Reservation) error {
			return checker.Check(r, existing)
		})
	}

	reserveSlot := func(store repository.SlotStore, id string) error {
		_, err := store.Reserve(ctx, id, model.Booker{Name: "Ana", Email: "ana@example.com", At: testNow},
			func(slot *model.Slot, existing []*model.Reservation) error {
				return checker.CheckOverlap(slot.Occupancy(), existing)
			})
		return err
	}

	t.Run("BookedSlotBlocksRange", func(t *testing.T) {
		slots, reservations := newStores(t)
		slot := newSlot(eventDate, "10:00")
		require.NoError(t, slots.Create(ctx, slot))
		require.NoError(t, reserveSlot(slots, slot.ID))

		err := createRange(reservations, "10:00", 30, "bob@example.com")
		assert.ErrorIs(t, err, availability.ErrOverlap)

		// Соседний диапазон свободен
		require.NoError(t, createRange(reservations, "10:30", 30, "bob@example.com"))
	})

	t.Run("FreeSlotDoesNotBlockRange", func(t *testing.T) {
		slots, reservations := newStores(t)
		require.NoError(t, slots.Create(ctx, newSlot(eventDate, "10:00")))

		require.NoError(t, createRange(reservations, "10:00", 30, "bob@example.com"))
	})

	t.Run("RangeBlocksSlot", func(t *testing.T) {
		slots, reservations := newStores(t)
		slot := newSlot(eventDate, "10:00")
		require.NoError(t, slots.Create(ctx, slot))
		require.NoError(t, createRange(reservations, "09:45", 30, "bob@example.com"))

		err := reserveSlot(slots, slot.ID)
		assert.ErrorIs(t, err, availability.ErrOverlap)

		stored, err := slots.GetByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.True(t, stored.Available)
	})

	t.Run("ConcurrentSlotAndRangeExactlyOneCommits", func(t *testing.T) {
		slots, reservations := newStores(t)
		slot := newSlot(eventDate, "10:00")
		require.NoError(t, slots.Create(ctx, slot))

		results := race(8, func(i int) error {
			if i%2 == 0 {
				return reserveSlot(slots, slot.ID)
			}
			return createRange(reservations, "10:00", 30, uuid.NewString()+"@example.com")
		})

		assert.Equal(t, 1, results.ok)
		assert.Equal(t, 7, results.count(availability.ErrOverlap)+results.count(repository.ErrSlotAlreadyBooked))

		list, err := reservations.ListByDate(ctx, eventDate)
		require.NoError(t, err)
		stored, err := slots.GetByID(ctx, slot.ID)
		require.NoError(t, err)

		booked := 0
		if !stored.Available {
			booked = 1
		}
		assert.Equal(t, 1, len(list)+booked)
	})
}

type raceResults struct {
	ok   int
	errs []error
}

func (r raceResults) count(target error) int {
	n := 0
	for _, err := range r.errs {
		if errors.Is(err, target) {
			n++
		}
	}
	return n
}

// race запускает n вызовов fn одновременно
func race(n int, fn func(i int) error) raceResults {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		start   = make(chan struct{})
		results raceResults
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := fn(i)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				results.ok++
				return
			}
			results.errs = append(results.errs, err)
		}(i)
	}

	close(start)
	wg.Wait()
	return results
}
