package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectReservation = `
	SELECT id, date, start_time, duration_minutes, name, email, note, confirmed, created_at
	FROM reservations
`

// ReservationRepository хранит брони произвольной длительности в PostgreSQL
type ReservationRepository struct {
	*base.Repository
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{Repository: base.NewRepository(pool)}
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var reservation model.Reservation
	err := row.Scan(
		&reservation.ID,
		&reservation.Date,
		&reservation.StartTime,
		&reservation.DurationMinutes,
		&reservation.Name,
		&reservation.Email,
		&reservation.Note,
		&reservation.Confirmed,
		&reservation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func collectReservations(rows pgx.Rows) ([]*model.Reservation, error) {
	defer rows.Close()

	var reservations []*model.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}

	return reservations, rows.Err()
}

// ListByDate получает брони на дату, упорядоченные по времени начала
func (r *ReservationRepository) ListByDate(ctx context.Context, date string) ([]*model.Reservation, error) {
	rows, err := r.Query(ctx, selectReservation+` WHERE date = $1 ORDER BY start_time, created_at`, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	reservations, err := collectReservations(rows)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	return reservations, nil
}

// lockDate берёт транзакционную advisory-блокировку даты.
// Конкурирующие транзакции на ту же дату ждут, пока текущая не завершится.
func lockDate(ctx context.Context, tx pgx.Tx, date string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, date); err != nil {
		return fmt.Errorf("lock reservation date: %w", err)
	}
	return nil
}

func listReservations(ctx context.Context, tx pgx.Tx, date string) ([]*model.Reservation, error) {
	rows, err := tx.Query(ctx, selectReservation+` WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	existing, err := collectReservations(rows)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return existing, nil
}

// CreateChecked вставляет бронь под advisory-блокировкой даты.
// Проверка видит и брони даты, и занятые на эту дату слоты.
func (r *ReservationRepository) CreateChecked(ctx context.Context, reservation *model.Reservation, check ReservationCheck) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockDate(ctx, tx, reservation.Date); err != nil {
			return err
		}

		existing, err := listReservations(ctx, tx, reservation.Date)
		if err != nil {
			return err
		}

		booked, err := bookedSlots(ctx, tx, reservation.Date)
		if err != nil {
			return err
		}
		existing = append(existing, Occupancy(booked)...)

		if err := check(existing); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO reservations (id, date, start_time, duration_minutes, name, email, note, confirmed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			reservation.ID,
			reservation.Date,
			reservation.StartTime,
			reservation.DurationMinutes,
			reservation.Name,
			reservation.Email,
			reservation.Note,
			reservation.Confirmed,
			reservation.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		return nil
	})
}
