package model

import "time"

// Slot заранее созданный слот на дату события.
// Переход "свободен" -> "забронирован" выполняется ровно один раз.
type Slot struct {
	ID              string    `json:"id" firestore:"-" bson:"_id"`
	Date            string    `json:"date" firestore:"date" bson:"date"` // YYYY-MM-DD
	Time            string    `json:"time" firestore:"time" bson:"time"` // HH:MM
	DurationMinutes int       `json:"duration_minutes" firestore:"durationMinutes" bson:"duration_minutes"`
	Available       bool      `json:"available" firestore:"available" bson:"available"`
	BookedBy        *Booker   `json:"booked_by,omitempty" firestore:"bookedBy,omitempty" bson:"booked_by,omitempty"`
	CreatedAt       time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// Booker данные того, кто забронировал слот
type Booker struct {
	Name  string    `json:"name" firestore:"name" bson:"name"`
	Email string    `json:"email" firestore:"email" bson:"email"`
	Note  string    `json:"note,omitempty" firestore:"note" bson:"note"`
	At    time.Time `json:"at" firestore:"at" bson:"at"`
}

// Occupancy представляет слот как бронь того же времени,
// чтобы оба варианта проверялись на пересечение по одной сетке.
// Контакты не переносятся: дубликаты между вариантами не ищутся.
func (s *Slot) Occupancy() *Reservation {
	r := &Reservation{
		ID:              "slot:" + s.ID,
		Date:            s.Date,
		StartTime:       s.Time,
		DurationMinutes: s.DurationMinutes,
		Confirmed:       !s.Available,
	}
	if s.BookedBy != nil {
		r.Name = s.BookedBy.Name
	}
	return r
}
