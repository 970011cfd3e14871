package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectSlot = `
	SELECT id, date, time, duration_minutes, available,
	       booked_name, booked_email, booked_note, booked_at, created_at
	FROM slots
`

// SlotRepository хранит слоты в PostgreSQL
type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// rowScanner общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var (
		slot              model.Slot
		name, email, note *string
		bookedAt          *time.Time
	)

	err := row.Scan(
		&slot.ID,
		&slot.Date,
		&slot.Time,
		&slot.DurationMinutes,
		&slot.Available,
		&name,
		&email,
		&note,
		&bookedAt,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if name != nil && bookedAt != nil {
		slot.BookedBy = &model.Booker{Name: *name, At: *bookedAt}
		if email != nil {
			slot.BookedBy.Email = *email
		}
		if note != nil {
			slot.BookedBy.Note = *note
		}
	}

	return &slot, nil
}

// List получает все слоты, упорядоченные по дате и времени
func (r *SlotRepository) List(ctx context.Context) ([]*model.Slot, error) {
	rows, err := r.Query(ctx, selectSlot+` ORDER BY date, time`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	return slots, nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	slot, err := scanSlot(r.QueryRow(ctx, selectSlot+` WHERE id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}
	return slot, nil
}

// Create создаёт новый свободный слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (id, date, time, duration_minutes, available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date, time) DO NOTHING
	`

	affected, err := r.ExecAffected(ctx, query,
		slot.ID,
		slot.Date,
		slot.Time,
		slot.DurationMinutes,
		slot.Available,
		slot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	if affected == 0 {
		return ErrSlotExists
	}

	return nil
}

// Exists проверяет существование слота на указанные дату и время
func (r *SlotRepository) Exists(ctx context.Context, date, clock string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM slots WHERE date = $1 AND time = $2)`

	var exists bool
	if err := r.QueryRow(ctx, query, date, clock).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}

	return exists, nil
}

// Reserve бронирует слот под advisory-блокировкой его даты, той же,
// что берёт ReservationRepository.CreateChecked. Строка слота блокируется
// до конца транзакции, поэтому из двух одновременных запросов проходит только один.
func (r *SlotRepository) Reserve(ctx context.Context, id string, booker model.Booker, check SlotCheck) (*model.Slot, error) {
	var reserved *model.Slot

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var date string
		if err := tx.QueryRow(ctx, `SELECT date FROM slots WHERE id = $1`, id).Scan(&date); err != nil {
			if base.IsNotFound(err) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("get slot date: %w", err)
		}

		if err := lockDate(ctx, tx, date); err != nil {
			return err
		}

		slot, err := scanSlot(tx.QueryRow(ctx, selectSlot+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if base.IsNotFound(err) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("get slot: %w", err)
		}

		if !slot.Available {
			return ErrSlotAlreadyBooked
		}

		if check != nil {
			existing, err := listReservations(ctx, tx, slot.Date)
			if err != nil {
				return err
			}
			if err := check(slot, existing); err != nil {
				return err
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE slots
			SET available = FALSE, booked_name = $2, booked_email = $3, booked_note = $4, booked_at = $5
			WHERE id = $1 AND available
		`, id, booker.Name, booker.Email, booker.Note, booker.At)
		if err != nil {
			return fmt.Errorf("book slot: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return ErrSlotAlreadyBooked
		}

		slot.Available = false
		slot.BookedBy = &booker
		reserved = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reserved, nil
}

// bookedSlots возвращает занятые слоты даты внутри транзакции
func bookedSlots(ctx context.Context, tx pgx.Tx, date string) ([]*model.Slot, error) {
	rows, err := tx.Query(ctx, selectSlot+` WHERE date = $1 AND NOT available`, date)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	return slots, nil
}
