package formatting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Freeeeeet/booking_bot/internal/model"
)

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "31 октября 2025", FormatDate("2025-10-31"))
	assert.Equal(t, "1 января 2026", FormatDate("2026-01-01"))
	assert.Equal(t, "завтра", FormatDate("завтра"))
}

func TestMonthGenitive(t *testing.T) {
	assert.Equal(t, "мая", MonthGenitive(time.May))
	assert.Equal(t, "", MonthGenitive(time.Month(13)))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{15, "15 мин"},
		{60, "1 ч"},
		{90, "1 ч 30 мин"},
		{120, "2 ч"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.minutes))
	}
}

func TestSlotsText(t *testing.T) {
	slots := []*model.Slot{
		{Time: "10:00", Available: true},
		{Time: "10:30", Available: false},
	}
	text := SlotsText("2025-10-31", slots)
	assert.Contains(t, text, "31 октября 2025")
	assert.Contains(t, text, "Свободно слотов: 1 из 2")

	text = SlotsText("2025-10-31", slots[1:])
	assert.Contains(t, text, "Свободных слотов не осталось")
}

func TestBookedText(t *testing.T) {
	slot := &model.Slot{
		Date:            "2025-10-31",
		Time:            "10:30",
		DurationMinutes: 30,
		BookedBy:        &model.Booker{Name: "Маша", Note: "Зомби"},
	}
	assert.Equal(t, "✅ Готово! Вы записаны на 31 октября 2025 в 10:30 (30 мин).\nМакияж: Зомби", BookedText(slot))
}
