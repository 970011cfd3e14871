package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/availability"
	"github.com/Freeeeeet/booking_bot/internal/metrics"
	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
)

var (
	ErrMissingContact = errors.New("name and email are required")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrWrongDate      = errors.New("reservations are accepted only for the event date")
	ErrOutsideHours   = errors.New("reservation is outside opening hours")
)

// Event параметры дня, на который идёт запись
type Event struct {
	Date        string
	OpeningTime string
	ClosingTime string
	SlotMinutes int
}

// Contact данные из формы бронирования
type Contact struct {
	Name  string
	Email string
	Note  string // тип макияжа
}

// ReservationInput запрос на бронь произвольной длительности
type ReservationInput struct {
	Contact
	Date            string
	StartTime       string
	DurationMinutes int
}

type BookingService struct {
	slots        repository.SlotStore
	reservations repository.ReservationStore
	checker      *availability.Checker
	event        Event
	now          func() time.Time
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

type Option func(*BookingService)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	slots repository.SlotStore,
	reservations repository.ReservationStore,
	checker *availability.Checker,
	event Event,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *BookingService {
	s := &BookingService{
		slots:        slots,
		reservations: reservations,
		checker:      checker,
		event:        event,
		now:          time.Now,
		metrics:      m,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Event возвращает параметры дня записи
func (s *BookingService) Event() Event {
	return s.event
}

// ListSlots возвращает все слоты, упорядоченные по дате и времени.
// Свободный слот, перекрытый подтверждённой бронью, отдаётся занятым
// (BookedBy при этом пуст).
func (s *BookingService) ListSlots(ctx context.Context) ([]*model.Slot, error) {
	slots, err := s.slots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	if err := s.markBlocked(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *BookingService) markBlocked(ctx context.Context, slots []*model.Slot) error {
	byDate := make(map[string][]*model.Reservation)
	for _, slot := range slots {
		if !slot.Available {
			continue
		}

		existing, ok := byDate[slot.Date]
		if !ok {
			var err error
			existing, err = s.reservations.ListByDate(ctx, slot.Date)
			if err != nil {
				return fmt.Errorf("list reservations: %w", err)
			}
			byDate[slot.Date] = existing
		}

		err := s.checker.CheckOverlap(slot.Occupancy(), existing)
		switch {
		case errors.Is(err, availability.ErrOverlap):
			slot.Available = false
		case err != nil:
			s.logger.Warn("Slot overlap check failed",
				zap.String("slot_id", slot.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// FreeSlots возвращает только свободные слоты
func (s *BookingService) FreeSlots(ctx context.Context) ([]*model.Slot, error) {
	slots, err := s.ListSlots(ctx)
	if err != nil {
		return nil, err
	}

	free := make([]*model.Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.Available {
			free = append(free, slot)
		}
	}
	return free, nil
}

// ReserveSlot бронирует заранее созданный слот.
// При проигранной гонке возвращается repository.ErrSlotAlreadyBooked,
// и вызывающий должен заново запросить список слотов. Слот, перекрытый
// бронью произвольной длительности, считается занятым: ошибка совпадает
// и с ErrSlotAlreadyBooked, и с availability.ErrOverlap.
func (s *BookingService) ReserveSlot(ctx context.Context, slotID string, contact Contact) (*model.Slot, error) {
	started := s.now()

	contact, err := normalizeContact(contact)
	if err != nil {
		s.metrics.ObserveReservation(metrics.KindSlot, metrics.ResultInvalid, 0)
		return nil, err
	}

	slot, err := s.slots.Reserve(ctx, slotID, model.Booker{
		Name:  contact.Name,
		Email: contact.Email,
		Note:  contact.Note,
		At:    s.now().UTC(),
	}, s.checkSlot)
	s.metrics.ObserveReservation(metrics.KindSlot, classify(err), s.now().Sub(started))
	if err != nil {
		s.logger.Warn("Slot reservation rejected",
			zap.String("slot_id", slotID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	s.logger.Info("Slot booked",
		zap.String("slot_id", slot.ID),
		zap.String("date", slot.Date),
		zap.String("time", slot.Time),
		zap.String("name", contact.Name),
	)

	return slot, nil
}

func (s *BookingService) checkSlot(slot *model.Slot, existing []*model.Reservation) error {
	if err := s.checker.CheckOverlap(slot.Occupancy(), existing); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrSlotAlreadyBooked, err)
	}
	return nil
}

// ListReservations возвращает брони на дату (по умолчанию день события)
func (s *BookingService) ListReservations(ctx context.Context, date string) ([]*model.Reservation, error) {
	if date == "" {
		date = s.event.Date
	}

	reservations, err := s.reservations.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// Reserve создаёт бронь произвольной длительности.
// Проверка пересечений выполняется внутри транзакции хранилища.
func (s *BookingService) Reserve(ctx context.Context, in ReservationInput) (*model.Reservation, error) {
	started := s.now()

	reservation, err := s.newReservation(in)
	if err != nil {
		s.metrics.ObserveReservation(metrics.KindRange, metrics.ResultInvalid, 0)
		return nil, err
	}

	err = s.reservations.CreateChecked(ctx, reservation, func(existing []*model.Reservation) error {
		return s.checker.Check(reservation, existing)
	})
	s.metrics.ObserveReservation(metrics.KindRange, classify(err), s.now().Sub(started))
	if err != nil {
		s.logger.Warn("Reservation rejected",
			zap.String("date", reservation.Date),
			zap.String("start_time", reservation.StartTime),
			zap.Int("duration", reservation.DurationMinutes),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	s.logger.Info("Reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("date", reservation.Date),
		zap.String("start_time", reservation.StartTime),
		zap.Int("duration", reservation.DurationMinutes),
	)

	return reservation, nil
}

func (s *BookingService) newReservation(in ReservationInput) (*model.Reservation, error) {
	contact, err := normalizeContact(in.Contact)
	if err != nil {
		return nil, err
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.event.Date
	}
	if date != s.event.Date {
		return nil, ErrWrongDate
	}

	// Проверяем формат заранее, чтобы не открывать транзакцию зря
	if _, err := s.checker.Ticks(in.StartTime, in.DurationMinutes); err != nil {
		return nil, err
	}

	start, _ := availability.ParseClock(in.StartTime)
	if err := s.withinHours(start, in.DurationMinutes); err != nil {
		return nil, err
	}

	return &model.Reservation{
		ID:              uuid.NewString(),
		Date:            date,
		StartTime:       availability.FormatClock(start),
		DurationMinutes: in.DurationMinutes,
		Name:            contact.Name,
		Email:           contact.Email,
		Note:            contact.Note,
		Confirmed:       true,
		CreatedAt:       s.now().UTC(),
	}, nil
}

// withinHours проверяет, что бронь целиком лежит в [OpeningTime, ClosingTime]
func (s *BookingService) withinHours(start, duration int) error {
	opening, err := availability.ParseClock(s.event.OpeningTime)
	if err != nil {
		return err
	}
	closing, err := availability.ParseClock(s.event.ClosingTime)
	if err != nil {
		return err
	}

	if start < opening || start+duration > closing {
		return fmt.Errorf("%w: %s-%s", ErrOutsideHours, s.event.OpeningTime, s.event.ClosingTime)
	}
	return nil
}

// TickMinutes размер сетки, на которой лежат свободные начала
func (s *BookingService) TickMinutes() int {
	return s.checker.TickMinutes()
}

// Availability возвращает время начала, на которое ещё можно записаться.
// Занятые слоты даты учитываются наравне с бронями.
func (s *BookingService) Availability(ctx context.Context, date string, duration int) ([]string, error) {
	if date == "" {
		date = s.event.Date
	}

	existing, err := s.ListReservations(ctx, date)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	for _, slot := range slots {
		if slot.Date == date && !slot.Available {
			existing = append(existing, slot.Occupancy())
		}
	}

	return s.checker.FreeStarts(date, duration, existing, s.event.OpeningTime, s.event.ClosingTime)
}

// GenerateSlots создаёт недостающие слоты дня события.
// Повторный вызов ничего не меняет.
func (s *BookingService) GenerateSlots(ctx context.Context) (int, error) {
	opening, err := availability.ParseClock(s.event.OpeningTime)
	if err != nil {
		return 0, err
	}
	closing, err := availability.ParseClock(s.event.ClosingTime)
	if err != nil {
		return 0, err
	}
	if s.event.SlotMinutes <= 0 {
		return 0, availability.ErrInvalidDuration
	}

	created := 0
	for start := opening; start+s.event.SlotMinutes <= closing; start += s.event.SlotMinutes {
		clock := availability.FormatClock(start)

		exists, err := s.slots.Exists(ctx, s.event.Date, clock)
		if err != nil {
			return created, fmt.Errorf("check slot %s: %w", clock, err)
		}
		if exists {
			continue
		}

		err = s.slots.Create(ctx, &model.Slot{
			ID:              uuid.NewString(),
			Date:            s.event.Date,
			Time:            clock,
			DurationMinutes: s.event.SlotMinutes,
			Available:       true,
			CreatedAt:       s.now().UTC(),
		})
		if errors.Is(err, repository.ErrSlotExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create slot %s: %w", clock, err)
		}
		created++
	}

	s.metrics.SlotsGenerated(created)
	if created > 0 {
		s.logger.Info("Slots generated",
			zap.String("date", s.event.Date),
			zap.Int("created", created),
		)
	}

	return created, nil
}

func normalizeContact(c Contact) (Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Note = strings.TrimSpace(c.Note)

	if c.Name == "" || c.Email == "" {
		return c, ErrMissingContact
	}

	if !ValidEmail(c.Email) {
		return c, ErrInvalidEmail
	}

	return c, nil
}

// ValidEmail проверяет, что строка является голым адресом без имени и угловых скобок
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// IsConflict сообщает, что запрос отклонён из-за уже занятого времени
func IsConflict(err error) bool {
	return errors.Is(err, repository.ErrSlotAlreadyBooked) ||
		errors.Is(err, availability.ErrOverlap) ||
		errors.Is(err, availability.ErrDuplicate)
}

// IsInvalid сообщает об ошибке во входных данных
func IsInvalid(err error) bool {
	return errors.Is(err, ErrMissingContact) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrWrongDate) ||
		errors.Is(err, ErrOutsideHours) ||
		errors.Is(err, availability.ErrInvalidDuration) ||
		errors.Is(err, availability.ErrInvalidTime) ||
		errors.Is(err, availability.ErrOutOfDay)
}

func classify(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case IsConflict(err):
		return metrics.ResultConflict
	case IsInvalid(err), errors.Is(err, repository.ErrSlotNotFound):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
