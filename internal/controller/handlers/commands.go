package handlers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/controller/board"
	"github.com/Freeeeeet/booking_bot/internal/controller/formatting"
	"github.com/Freeeeeet/booking_bot/internal/controller/state"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}

	name := ""
	if update.Message.From != nil {
		name = update.Message.From.FirstName
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Здесь можно записаться на хэллоуинский макияж %s.\n\n"+
			"/slots - Свободное время\n"+
			"/board - Расписание дня картинкой\n"+
			"/help - Справка",
		name,
		formatting.FormatDate(h.bookingService.Event().Date),
	)

	h.sendText(ctx, s, update.Message.Chat.ID, welcomeText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/slots - Список слотов, нажмите на время чтобы записаться\n" +
		"/board - Расписание дня\n" +
		"/cancel - Прервать запись\n" +
		"/help - Показать эту справку\n\n" +
		"После выбора времени бот спросит имя, email и тип макияжа."

	h.sendText(ctx, s, update.Message.Chat.ID, helpText)
}

// HandleSlots обрабатывает команду /slots
func (h *Handlers) HandleSlots(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendSlots(ctx, s, update.Message.Chat.ID)
}

// HandleBoard отправляет картинку с расписанием дня
func (h *Handlers) HandleBoard(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	date := h.bookingService.Event().Date

	slots, err := h.bookingService.ListSlots(ctx)
	if err != nil {
		h.logger.Error("Failed to list slots for board", zap.Error(err))
		h.sendText(ctx, s, chatID, ErrorMessage(err))
		return
	}
	reservations, err := h.bookingService.ListReservations(ctx, date)
	if err != nil {
		h.logger.Error("Failed to list reservations for board", zap.Error(err))
		h.sendText(ctx, s, chatID, ErrorMessage(err))
		return
	}

	img, err := board.Render(date, slots, reservations)
	if err != nil {
		h.logger.Error("Failed to render board", zap.Error(err))
		h.sendText(ctx, s, chatID, ErrorMessage(err))
		return
	}

	_, err = s.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: "board.png",
			Data:     bytes.NewReader(img),
		},
		Caption: "🗓 " + formatting.FormatDate(date),
	})
	if err != nil {
		h.logger.Error("Failed to send board", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.stateManager.GetState(telegramID) == state.StateNone {
		h.sendText(ctx, s, update.Message.Chat.ID, "❌ Нет активных операций для отмены.")
		return
	}

	h.stateManager.ClearState(telegramID)
	h.sendText(ctx, s, update.Message.Chat.ID, "✅ Запись отменена.\n\nСвободное время: /slots")
}
