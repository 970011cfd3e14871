package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/controller/formatting"
	"github.com/Freeeeeet/booking_bot/internal/controller/state"
	"github.com/Freeeeeet/booking_bot/internal/repository"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

// Ограничения на ввод в диалоге
const (
	NameMaxLength = 100
	NoteMaxLength = 200

	// Ответ на шаге заметки, означающий "без заметки"
	skipNote = "-"
)

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" || update.Message.From == nil {
		return
	}

	// Игнорируем команды (они обрабатываются другими handlers)
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	switch h.stateManager.GetState(telegramID) {
	case state.StateReserveName:
		h.handleNameStep(ctx, s, update)
	case state.StateReserveEmail:
		h.handleEmailStep(ctx, s, update)
	case state.StateReserveNote:
		h.handleNoteStep(ctx, s, update)
	default:
		h.logger.Debug("No active state, ignoring message", zap.Int64("telegram_id", telegramID))
	}
}

func (h *Handlers) handleNameStep(ctx context.Context, s Sender, update *models.Update) {
	chatID := update.Message.Chat.ID
	name := strings.TrimSpace(update.Message.Text)

	if name == "" || utf8.RuneCountInString(name) > NameMaxLength {
		h.sendText(ctx, s, chatID, fmt.Sprintf("❌ Имя должно быть от 1 до %d символов.\n\nПопробуйте ещё раз:", NameMaxLength))
		return
	}

	if !h.stateManager.Advance(update.Message.From.ID, state.StateReserveEmail, func(d *state.Draft) { d.Name = name }) {
		h.sendText(ctx, s, chatID, "⌛ Запись устарела. Выберите время заново: /slots")
		return
	}

	h.sendText(ctx, s, chatID, "Шаг 2 из 3: Ваш email?")
}

func (h *Handlers) handleEmailStep(ctx context.Context, s Sender, update *models.Update) {
	chatID := update.Message.Chat.ID
	email := strings.TrimSpace(update.Message.Text)

	if !service.ValidEmail(email) {
		h.sendText(ctx, s, chatID, ErrorMessage(service.ErrInvalidEmail)+"\n\nПопробуйте ещё раз:")
		return
	}

	if !h.stateManager.Advance(update.Message.From.ID, state.StateReserveNote, func(d *state.Draft) { d.Email = email }) {
		h.sendText(ctx, s, chatID, "⌛ Запись устарела. Выберите время заново: /slots")
		return
	}

	h.sendText(ctx, s, chatID, fmt.Sprintf(
		"Шаг 3 из 3: Какой макияж хотите? Например: зомби, вампир, ведьма.\n\nОтправьте %q, если ещё не решили.",
		skipNote,
	))
}

func (h *Handlers) handleNoteStep(ctx context.Context, s Sender, update *models.Update) {
	chatID := update.Message.Chat.ID
	telegramID := update.Message.From.ID

	note := strings.TrimSpace(update.Message.Text)
	if note == skipNote {
		note = ""
	}
	if utf8.RuneCountInString(note) > NoteMaxLength {
		h.sendText(ctx, s, chatID, fmt.Sprintf("❌ Слишком длинно, максимум %d символов.\n\nПопробуйте ещё раз:", NoteMaxLength))
		return
	}

	draft, ok := h.stateManager.GetDraft(telegramID)
	h.stateManager.ClearState(telegramID)
	if !ok {
		h.sendText(ctx, s, chatID, "⌛ Запись устарела. Выберите время заново: /slots")
		return
	}

	slot, err := h.bookingService.ReserveSlot(ctx, draft.SlotID, service.Contact{
		Name:  draft.Name,
		Email: draft.Email,
		Note:  note,
	})
	if err != nil {
		h.sendText(ctx, s, chatID, ErrorMessage(err))
		if errors.Is(err, repository.ErrSlotAlreadyBooked) {
			h.sendSlots(ctx, s, chatID)
		}
		return
	}

	h.logger.Info("Slot booked via bot",
		zap.Int64("telegram_id", telegramID),
		zap.String("slot_id", slot.ID),
	)
	h.sendText(ctx, s, chatID, formatting.BookedText(slot))
}
