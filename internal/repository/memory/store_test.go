package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
	"github.com/Freeeeeet/booking_bot/internal/repository/storetest"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	ctx          context.Context
	slots        *SlotStore
	reservations *ReservationStore
	testNow      time.Time
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.slots, s.reservations = NewStores()
	s.testNow = time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) addSlot(id, date, clock string) {
	s.Require().NoError(s.slots.Create(s.ctx, &model.Slot{
		ID:              id,
		Date:            date,
		Time:            clock,
		DurationMinutes: 30,
		Available:       true,
		CreatedAt:       s.testNow,
	}))
}

func (s *StoreTestSuite) TestListOrderedByDateThenTime() {
	s.addSlot("c", "2025-10-31", "11:00")
	s.addSlot("a", "2025-10-30", "18:00")
	s.addSlot("b", "2025-10-31", "10:30")

	slots, err := s.slots.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(slots, 3)
	s.Equal("a", slots[0].ID)
	s.Equal("b", slots[1].ID)
	s.Equal("c", slots[2].ID)
}

func (s *StoreTestSuite) TestCreateDuplicateDateTime() {
	s.addSlot("a", "2025-10-31", "10:00")

	err := s.slots.Create(s.ctx, &model.Slot{ID: "b", Date: "2025-10-31", Time: "10:00", Available: true})
	s.ErrorIs(err, repository.ErrSlotExists)

	exists, err := s.slots.Exists(s.ctx, "2025-10-31", "10:00")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *StoreTestSuite) TestReserveOnce() {
	s.addSlot("a", "2025-10-31", "10:00")
	booker := model.Booker{Name: "Ana", Email: "ana@example.com", Note: "catrina", At: s.testNow}

	slot, err := s.slots.Reserve(s.ctx, "a", booker, nil)
	s.Require().NoError(err)
	s.False(slot.Available)
	s.Equal("Ana", slot.BookedBy.Name)

	_, err = s.slots.Reserve(s.ctx, "a", booker, nil)
	s.ErrorIs(err, repository.ErrSlotAlreadyBooked)

	_, err = s.slots.Reserve(s.ctx, "missing", booker, nil)
	s.ErrorIs(err, repository.ErrSlotNotFound)
}

func (s *StoreTestSuite) TestReturnedSlotIsACopy() {
	s.addSlot("a", "2025-10-31", "10:00")

	slot, err := s.slots.GetByID(s.ctx, "a")
	s.Require().NoError(err)
	slot.Available = false

	again, err := s.slots.GetByID(s.ctx, "a")
	s.Require().NoError(err)
	s.True(again.Available)
}

func (s *StoreTestSuite) TestConcurrentReserveExactlyOneWins() {
	s.addSlot("a", "2025-10-31", "10:00")

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		lostRace int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.slots.Reserve(s.ctx, "a", model.Booker{Name: fmt.Sprintf("user-%d", i), At: s.testNow}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrSlotAlreadyBooked):
				lostRace++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(workers-1, lostRace)
}

func (s *StoreTestSuite) TestCreateCheckedPassesDateSnapshot() {
	first := &model.Reservation{ID: "r1", Date: "2025-10-31", StartTime: "11:00", DurationMinutes: 30, Confirmed: true}
	other := &model.Reservation{ID: "r2", Date: "2025-11-01", StartTime: "10:00", DurationMinutes: 30, Confirmed: true}

	s.Require().NoError(s.reservations.CreateChecked(s.ctx, first, func([]*model.Reservation) error { return nil }))
	s.Require().NoError(s.reservations.CreateChecked(s.ctx, other, func([]*model.Reservation) error { return nil }))

	var seen []*model.Reservation
	candidate := &model.Reservation{ID: "r3", Date: "2025-10-31", StartTime: "10:00", DurationMinutes: 30, Confirmed: true}
	s.Require().NoError(s.reservations.CreateChecked(s.ctx, candidate, func(existing []*model.Reservation) error {
		seen = existing
		return nil
	}))
	s.Require().Len(seen, 1)
	s.Equal("r1", seen[0].ID)

	list, err := s.reservations.ListByDate(s.ctx, "2025-10-31")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("r3", list[0].ID)
	s.Equal("r1", list[1].ID)
}

func (s *StoreTestSuite) TestCreateCheckedRejectionStoresNothing() {
	rejected := errors.New("rejected")
	err := s.reservations.CreateChecked(s.ctx, &model.Reservation{ID: "r1", Date: "2025-10-31"}, func([]*model.Reservation) error {
		return rejected
	})
	s.ErrorIs(err, rejected)

	list, err := s.reservations.ListByDate(s.ctx, "2025-10-31")
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *StoreTestSuite) TestSlotCheckSeesReservationsOfSlotDate() {
	s.addSlot("a", "2025-10-31", "10:00")
	booked := &model.Reservation{ID: "r1", Date: "2025-10-31", StartTime: "10:15", DurationMinutes: 30, Confirmed: true}
	other := &model.Reservation{ID: "r2", Date: "2025-11-01", StartTime: "10:00", DurationMinutes: 30, Confirmed: true}
	s.Require().NoError(s.reservations.CreateChecked(s.ctx, booked, func([]*model.Reservation) error { return nil }))
	s.Require().NoError(s.reservations.CreateChecked(s.ctx, other, func([]*model.Reservation) error { return nil }))

	rejected := errors.New("rejected")
	var seen []*model.Reservation
	_, err := s.slots.Reserve(s.ctx, "a", model.Booker{Name: "Ana", At: s.testNow}, func(slot *model.Slot, existing []*model.Reservation) error {
		s.Equal("a", slot.ID)
		seen = existing
		return rejected
	})
	s.ErrorIs(err, rejected)
	s.Require().Len(seen, 1)
	s.Equal("r1", seen[0].ID)

	// Отказ проверки оставляет слот свободным
	slot, err := s.slots.GetByID(s.ctx, "a")
	s.Require().NoError(err)
	s.True(slot.Available)
}

func (s *StoreTestSuite) TestCreateCheckedSeesBookedSlots() {
	s.addSlot("a", "2025-10-31", "10:00")
	s.addSlot("b", "2025-10-31", "10:30")
	_, err := s.slots.Reserve(s.ctx, "a", model.Booker{Name: "Ana", At: s.testNow}, nil)
	s.Require().NoError(err)

	var seen []*model.Reservation
	candidate := &model.Reservation{ID: "r1", Date: "2025-10-31", StartTime: "12:00", DurationMinutes: 30, Confirmed: true}
	s.Require().NoError(s.reservations.CreateChecked(s.ctx, candidate, func(existing []*model.Reservation) error {
		seen = existing
		return nil
	}))

	s.Require().Len(seen, 1)
	s.Equal("slot:a", seen[0].ID)
	s.Equal("10:00", seen[0].StartTime)
	s.True(seen[0].Confirmed)

	// Занятые слоты не попадают в список броней
	list, err := s.reservations.ListByDate(s.ctx, "2025-10-31")
	s.Require().NoError(err)
	s.Len(list, 1)
}

func TestSlotStoreContract(t *testing.T) {
	storetest.SlotStore(t, func(t *testing.T) repository.SlotStore {
		slots, _ := NewStores()
		return slots
	})
}

func TestReservationStoreContract(t *testing.T) {
	storetest.ReservationStore(t, func(t *testing.T) repository.ReservationStore {
		_, reservations := NewStores()
		return reservations
	})
}

func TestMixedVariantsContract(t *testing.T) {
	storetest.MixedVariants(t, func(t *testing.T) (repository.SlotStore, repository.ReservationStore) {
		return NewStores()
	})
}
