// Package memory держит слоты и брони в памяти процесса.
// Используется в тестах и при STORE=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
)

// data общее состояние обоих хранилищ. Один мьютекс играет роль
// блокировки даты для слотов и для броней одновременно.
type data struct {
	mu           sync.Mutex
	slots        map[string]*model.Slot
	reservations map[string][]*model.Reservation // date -> брони
}

type SlotStore struct {
	db *data
}

type ReservationStore struct {
	db *data
}

// NewStores создаёт связанную пару хранилищ над общим состоянием
func NewStores() (*SlotStore, *ReservationStore) {
	db := &data{
		slots:        make(map[string]*model.Slot),
		reservations: make(map[string][]*model.Reservation),
	}
	return &SlotStore{db: db}, &ReservationStore{db: db}
}

func (s *SlotStore) List(ctx context.Context) ([]*model.Slot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	slots := make([]*model.Slot, 0, len(s.db.slots))
	for _, slot := range s.db.slots {
		slots = append(slots, copySlot(slot))
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})

	return slots, nil
}

func (s *SlotStore) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	slot, ok := s.db.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	return copySlot(slot), nil
}

func (s *SlotStore) Create(ctx context.Context, slot *model.Slot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.slots {
		if existing.Date == slot.Date && existing.Time == slot.Time {
			return repository.ErrSlotExists
		}
	}

	s.db.slots[slot.ID] = copySlot(slot)
	return nil
}

func (s *SlotStore) Exists(ctx context.Context, date, clock string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, slot := range s.db.slots {
		if slot.Date == date && slot.Time == clock {
			return true, nil
		}
	}
	return false, nil
}

func (s *SlotStore) Reserve(ctx context.Context, id string, booker model.Booker, check repository.SlotCheck) (*model.Slot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	slot, ok := s.db.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	if !slot.Available {
		return nil, repository.ErrSlotAlreadyBooked
	}

	if check != nil {
		if err := check(copySlot(slot), s.db.reservationsOf(slot.Date)); err != nil {
			return nil, err
		}
	}

	slot.Available = false
	slot.BookedBy = &booker

	return copySlot(slot), nil
}

func copySlot(slot *model.Slot) *model.Slot {
	c := *slot
	if slot.BookedBy != nil {
		booker := *slot.BookedBy
		c.BookedBy = &booker
	}
	return &c
}

func (s *ReservationStore) ListByDate(ctx context.Context, date string) ([]*model.Reservation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	return s.db.reservationsOf(date), nil
}

func (s *ReservationStore) CreateChecked(ctx context.Context, reservation *model.Reservation, check repository.ReservationCheck) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing := s.db.reservationsOf(reservation.Date)
	existing = append(existing, repository.Occupancy(s.db.slotsOf(reservation.Date))...)

	if err := check(existing); err != nil {
		return err
	}

	c := *reservation
	s.db.reservations[reservation.Date] = append(s.db.reservations[reservation.Date], &c)
	return nil
}

func (d *data) reservationsOf(date string) []*model.Reservation {
	list := make([]*model.Reservation, 0, len(d.reservations[date]))
	for _, r := range d.reservations[date] {
		c := *r
		list = append(list, &c)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartTime < list[j].StartTime
	})
	return list
}

func (d *data) slotsOf(date string) []*model.Slot {
	var list []*model.Slot
	for _, slot := range d.slots {
		if slot.Date == date {
			list = append(list, copySlot(slot))
		}
	}
	return list
}
