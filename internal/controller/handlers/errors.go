package handlers

import (
	"errors"

	"github.com/Freeeeeet/booking_bot/internal/repository"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrSlotAlreadyBooked):
		return "😔 Этот слот только что заняли. Вот актуальный список:"
	case errors.Is(err, repository.ErrSlotNotFound):
		return "❌ Слот не найден"
	case errors.Is(err, service.ErrMissingContact):
		return "❌ Нужно указать имя и email"
	case errors.Is(err, service.ErrInvalidEmail):
		return "❌ Похоже, это не email. Пример: name@example.com"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}
