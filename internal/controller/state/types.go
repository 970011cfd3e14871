package state

import "time"

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

const (
	StateNone UserState = "" // Нет активного состояния

	// Состояния диалога бронирования слота
	StateReserveName  UserState = "reserve_name"
	StateReserveEmail UserState = "reserve_email"
	StateReserveNote  UserState = "reserve_note"
)

// Draft черновик брони, собираемый по шагам
type Draft struct {
	SlotID   string
	SlotTime string
	Name     string
	Email    string
}

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State     UserState
	Draft     Draft
	UpdatedAt time.Time
}
