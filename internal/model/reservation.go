package model

import "time"

// Reservation бронь произвольной длительности (вариант без заранее созданных слотов)
type Reservation struct {
	ID              string    `json:"id" firestore:"-" bson:"_id"`
	Date            string    `json:"date" firestore:"date" bson:"date"`
	StartTime       string    `json:"start_time" firestore:"startTime" bson:"start_time"`
	DurationMinutes int       `json:"duration_minutes" firestore:"durationMinutes" bson:"duration_minutes"`
	Name            string    `json:"name" firestore:"name" bson:"name"`
	Email           string    `json:"email" firestore:"email" bson:"email"`
	Note            string    `json:"note,omitempty" firestore:"note" bson:"note"` // тип макияжа
	Confirmed       bool      `json:"confirmed" firestore:"confirmed" bson:"confirmed"`
	CreatedAt       time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}
