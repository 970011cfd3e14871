package repository

import (
	"context"
	"errors"

	"github.com/Freeeeeet/booking_bot/internal/model"
)

var (
	ErrSlotNotFound      = errors.New("slot not found")
	ErrSlotAlreadyBooked = errors.New("slot already booked")
	ErrSlotExists        = errors.New("slot already exists")
)

// SlotStore хранилище заранее созданных слотов
type SlotStore interface {
	// List возвращает все слоты, упорядоченные по дате, затем по времени
	List(ctx context.Context) ([]*model.Slot, error)
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	Create(ctx context.Context, slot *model.Slot) error
	Exists(ctx context.Context, date, clock string) (bool, error)
	// Reserve атомарно переводит свободный слот в забронированный.
	// Проигравший в гонке получает ErrSlotAlreadyBooked.
	// check (может быть nil) выполняется под той же блокировкой даты,
	// что и ReservationStore.CreateChecked.
	Reserve(ctx context.Context, id string, booker model.Booker, check SlotCheck) (*model.Slot, error)
}

// SlotCheck вызывается внутри транзакции Reserve со свободным слотом
// и бронями его даты. Ненулевая ошибка отменяет бронирование.
type SlotCheck func(slot *model.Slot, existing []*model.Reservation) error

// ReservationCheck вызывается внутри транзакции с текущими бронями даты
// и занятыми слотами этой даты (см. Occupancy).
// Ненулевая ошибка отменяет вставку и возвращается вызывающему как есть.
type ReservationCheck func(existing []*model.Reservation) error

// ReservationStore хранилище броней произвольной длительности
type ReservationStore interface {
	ListByDate(ctx context.Context, date string) ([]*model.Reservation, error)
	// CreateChecked сериализует вставки в пределах одной даты:
	// проверка и запись выполняются атомарно.
	CreateChecked(ctx context.Context, reservation *model.Reservation, check ReservationCheck) error
}

// Occupancy переводит занятые слоты в брони для проверки пересечений
func Occupancy(slots []*model.Slot) []*model.Reservation {
	var out []*model.Reservation
	for _, slot := range slots {
		if !slot.Available {
			out = append(out, slot.Occupancy())
		}
	}
	return out
}
