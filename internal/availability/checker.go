package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_bot/internal/model"
)

const (
	DefaultTickMinutes = 15
	minutesPerDay      = 24 * 60
)

// Checker проверяет пересечения броней на дискретной сетке тиков
type Checker struct {
	tick int
}

// NewChecker создаёт проверку с размером тика в минутах
func NewChecker(tickMinutes int) (*Checker, error) {
	if tickMinutes <= 0 {
		return nil, ErrInvalidTick
	}
	return &Checker{tick: tickMinutes}, nil
}

// TickMinutes возвращает размер тика
func (c *Checker) TickMinutes() int {
	return c.tick
}

// ParseClock переводит "HH:MM" в минуты от начала дня
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock переводит минуты от начала дня в "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Ticks возвращает номера тиков, которые займёт бронь.
// Длительность округляется вверх до целого числа тиков.
func (c *Checker) Ticks(start string, duration int) ([]int, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	startMin, err := ParseClock(start)
	if err != nil {
		return nil, err
	}

	return c.ticksFor(startMin, duration)
}

func (c *Checker) ticksFor(startMin, duration int) ([]int, error) {
	end := startMin + duration
	if end > minutesPerDay {
		return nil, fmt.Errorf("%w: %s + %d min", ErrOutOfDay, FormatClock(startMin), duration)
	}

	first := startMin / c.tick
	last := (end+c.tick-1)/c.tick - 1

	ticks := make([]int, 0, last-first+1)
	for t := first; t <= last; t++ {
		ticks = append(ticks, t)
	}
	return ticks, nil
}

// Check отклоняет кандидата, если он пересекается хотя бы по одному тику
// с подтверждённой бронью той же даты, либо дублирует бронь того же человека
// на тот же тип макияжа.
func (c *Checker) Check(candidate *model.Reservation, existing []*model.Reservation) error {
	return c.check(candidate, existing, true)
}

// CheckOverlap то же, что Check, но без поиска дубликатов
func (c *Checker) CheckOverlap(candidate *model.Reservation, existing []*model.Reservation) error {
	return c.check(candidate, existing, false)
}

func (c *Checker) check(candidate *model.Reservation, existing []*model.Reservation, duplicates bool) error {
	ticks, err := c.Ticks(candidate.StartTime, candidate.DurationMinutes)
	if err != nil {
		return err
	}

	occupied := make(map[int]struct{}, len(ticks))
	for _, t := range ticks {
		occupied[t] = struct{}{}
	}

	for _, r := range existing {
		if !r.Confirmed || r.Date != candidate.Date || r.ID == candidate.ID {
			continue
		}

		if duplicates && sameContact(r, candidate) {
			return &ConflictError{ReservationID: r.ID, StartTime: r.StartTime, Reason: ErrDuplicate}
		}

		taken, err := c.Ticks(r.StartTime, r.DurationMinutes)
		if err != nil {
			return fmt.Errorf("existing reservation %s: %w", r.ID, err)
		}

		for _, t := range taken {
			if _, ok := occupied[t]; ok {
				return &ConflictError{ReservationID: r.ID, StartTime: r.StartTime, Reason: ErrOverlap}
			}
		}
	}

	return nil
}

// FreeStarts возвращает время начала на сетке тиков в пределах [open, close),
// при котором бронь длительностью duration будет принята.
func (c *Checker) FreeStarts(date string, duration int, existing []*model.Reservation, open, close string) ([]string, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	openMin, err := ParseClock(open)
	if err != nil {
		return nil, err
	}
	closeMin, err := ParseClock(close)
	if err != nil {
		return nil, err
	}

	occupied := make(map[int]struct{})
	for _, r := range existing {
		if !r.Confirmed || r.Date != date {
			continue
		}
		taken, err := c.Ticks(r.StartTime, r.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("existing reservation %s: %w", r.ID, err)
		}
		for _, t := range taken {
			occupied[t] = struct{}{}
		}
	}

	// Начало выравниваем вверх по сетке
	start := (openMin + c.tick - 1) / c.tick * c.tick

	var starts []string
	for s := start; s+duration <= closeMin; s += c.tick {
		ticks, err := c.ticksFor(s, duration)
		if err != nil {
			break
		}
		free := true
		for _, t := range ticks {
			if _, ok := occupied[t]; ok {
				free = false
				break
			}
		}
		if free {
			starts = append(starts, FormatClock(s))
		}
	}

	return starts, nil
}

func sameContact(a, b *model.Reservation) bool {
	if a.Email == "" || b.Email == "" {
		return false
	}
	return normalize(a.Email) == normalize(b.Email) && normalize(a.Note) == normalize(b.Note)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
