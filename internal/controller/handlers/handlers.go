package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/controller/formatting"
	"github.com/Freeeeeet/booking_bot/internal/controller/keyboard"
	"github.com/Freeeeeet/booking_bot/internal/controller/state"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

// Sender методы Telegram API, которыми пользуются обработчики (*bot.Bot их реализует)
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// HandlerFunc обработчик апдейта, не привязанный к конкретному *bot.Bot
type HandlerFunc func(ctx context.Context, s Sender, update *models.Update)

// Adapt превращает HandlerFunc в обработчик go-telegram/bot
func Adapt(fn HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		fn(ctx, b, update)
	}
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	bookingService *service.BookingService
	stateManager   *state.Manager
	logger         *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(bookingService *service.BookingService, stateManager *state.Manager, logger *zap.Logger) *Handlers {
	return &Handlers{
		bookingService: bookingService,
		stateManager:   stateManager,
		logger:         logger,
	}
}

// sendText отправляет сообщение и логирует если не удалось
func (h *Handlers) sendText(ctx context.Context, s Sender, chatID int64, text string) {
	_, err := s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// sendSlots отправляет актуальный список слотов с кнопками
func (h *Handlers) sendSlots(ctx context.Context, s Sender, chatID int64) {
	slots, err := h.bookingService.ListSlots(ctx)
	if err != nil {
		h.logger.Error("Failed to list slots", zap.Error(err))
		h.sendText(ctx, s, chatID, ErrorMessage(err))
		return
	}

	_, err = s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        formatting.SlotsText(h.bookingService.Event().Date, slots),
		ReplyMarkup: keyboard.Slots(slots),
	})
	if err != nil {
		h.logger.Error("Failed to send slots", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
