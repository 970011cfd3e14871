package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/controller/keyboard"
)

// HandleCallbackQuery обрабатывает нажатия на inline кнопки
func (h *Handlers) HandleCallbackQuery(ctx context.Context, s Sender, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}
	if callback.Message.Message == nil {
		h.answer(ctx, s, callback.ID, "", false)
		return
	}
	chatID := callback.Message.Message.Chat.ID

	if callback.Data == keyboard.RefreshSlots {
		h.answer(ctx, s, callback.ID, "", false)
		h.sendSlots(ctx, s, chatID)
		return
	}

	slotID, ok := keyboard.ParseSlotID(callback.Data)
	if !ok {
		h.logger.Warn("Unknown callback data", zap.String("data", callback.Data))
		h.answer(ctx, s, callback.ID, "❌ Неверный формат данных", false)
		return
	}

	free, err := h.bookingService.FreeSlots(ctx)
	if err != nil {
		h.logger.Error("Failed to list free slots", zap.Error(err))
		h.answer(ctx, s, callback.ID, ErrorMessage(err), true)
		return
	}

	for _, slot := range free {
		if slot.ID != slotID {
			continue
		}

		h.stateManager.Start(callback.From.ID, slot.ID, slot.Time)
		h.answer(ctx, s, callback.ID, "", false)
		h.sendText(ctx, s, chatID, fmt.Sprintf(
			"📝 Запись на %s\n\n"+
				"Шаг 1 из 3: Как вас зовут?\n\n"+
				"Для отмены используйте /cancel",
			slot.Time,
		))
		return
	}

	// Слот заняли, пока пользователь смотрел на старый список
	h.answer(ctx, s, callback.ID, "😔 Это время уже занято", true)
	h.sendSlots(ctx, s, chatID)
}

// answer отвечает на callback query
func (h *Handlers) answer(ctx context.Context, s Sender, callbackID, text string, alert bool) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}
