package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_bot/internal/model"
)

var monthsGenitive = []string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// MonthGenitive возвращает название месяца в родительном падеже
func MonthGenitive(month time.Month) string {
	if month < time.January || month > time.December {
		return ""
	}
	return monthsGenitive[month-1]
}

// FormatDate превращает "2025-10-31" в "31 октября 2025".
// Неразборчивая дата возвращается как есть.
func FormatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d %s %d", t.Day(), MonthGenitive(t.Month()), t.Year())
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

// SlotsText текст сообщения со списком слотов дня
func SlotsText(date string, slots []*model.Slot) string {
	free := 0
	for _, slot := range slots {
		if slot.Available {
			free++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎃 Запись на макияж, %s\n\n", FormatDate(date))

	if free == 0 {
		sb.WriteString("😔 Свободных слотов не осталось.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Свободно слотов: %d из %d.\n", free, len(slots))
	sb.WriteString("Выберите удобное время:")
	return sb.String()
}

// BookedText подтверждение успешной записи
func BookedText(slot *model.Slot) string {
	text := fmt.Sprintf("✅ Готово! Вы записаны на %s в %s (%s).",
		FormatDate(slot.Date), slot.Time, FormatDuration(slot.DurationMinutes))
	if slot.BookedBy != nil && slot.BookedBy.Note != "" {
		text += "\nМакияж: " + slot.BookedBy.Note
	}
	return text
}
