package keyboard

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/booking_bot/internal/model"
)

// Префиксы callback data
const (
	SlotPrefix   = "slot:"
	RefreshSlots = "slots:refresh"
)

// Кнопок слотов в одном ряду
const slotsPerRow = 4

// Builder упрощает создание inline клавиатур
type Builder struct {
	rows [][]models.InlineKeyboardButton
}

// NewBuilder создаёт новый builder клавиатуры
func NewBuilder() *Builder {
	return &Builder{
		rows: make([][]models.InlineKeyboardButton, 0),
	}
}

// Row добавляет новый ряд кнопок
func (b *Builder) Row(buttons ...models.InlineKeyboardButton) *Builder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

// Build создаёт финальную клавиатуру
func (b *Builder) Build() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: b.rows,
	}
}

// Button создаёт кнопку
func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// Slots клавиатура свободных слотов и кнопка обновления
func Slots(slots []*model.Slot) *models.InlineKeyboardMarkup {
	b := NewBuilder()

	row := make([]models.InlineKeyboardButton, 0, slotsPerRow)
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		row = append(row, Button(slot.Time, SlotPrefix+slot.ID))
		if len(row) == slotsPerRow {
			b.Row(row...)
			row = make([]models.InlineKeyboardButton, 0, slotsPerRow)
		}
	}
	b.Row(row...)

	b.Row(Button("🔄 Обновить", RefreshSlots))
	return b.Build()
}

// ParseSlotID извлекает ID слота из callback data
func ParseSlotID(data string) (string, bool) {
	id, ok := strings.CutPrefix(data, SlotPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
