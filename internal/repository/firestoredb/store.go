// Package firestoredb хранит слоты и брони в Cloud Firestore.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
)

const (
	slotsCollection        = "slots"
	reservationsCollection = "reservations"
	// Документ-страж на каждую дату: его перезаписывает каждая транзакция
	// бронирования, поэтому транзакции на одну дату конфликтуют между собой.
	guardsCollection = "reservation_days"

	// При высокой конкуренции за один документ стандартных 5 попыток мало
	transactionAttempts = 10
)

// NewClient создаёт клиент Firestore через Firebase Admin SDK.
// Пустой credentialsFile означает Application Default Credentials
// (или эмулятор, если задан FIRESTORE_EMULATOR_HOST).
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}

	return client, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

type SlotStore struct {
	client *firestore.Client
}

func NewSlotStore(client *firestore.Client) *SlotStore {
	return &SlotStore{client: client}
}

func (s *SlotStore) collection() *firestore.CollectionRef {
	return s.client.Collection(slotsCollection)
}

func decodeSlot(snap *firestore.DocumentSnapshot) (*model.Slot, error) {
	var slot model.Slot
	if err := snap.DataTo(&slot); err != nil {
		return nil, fmt.Errorf("decode slot %s: %w", snap.Ref.ID, err)
	}
	slot.ID = snap.Ref.ID
	return &slot, nil
}

// List получает все слоты, упорядоченные по дате и времени
func (s *SlotStore) List(ctx context.Context) ([]*model.Slot, error) {
	docs, err := s.collection().
		OrderBy("date", firestore.Asc).
		OrderBy("time", firestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	slots := make([]*model.Slot, 0, len(docs))
	for _, doc := range docs {
		slot, err := decodeSlot(doc)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

func (s *SlotStore) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	snap, err := s.collection().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}
	return decodeSlot(snap)
}

// Create создаёт слот, если на эти дату и время слота ещё нет
func (s *SlotStore) Create(ctx context.Context, slot *model.Slot) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(s.sameTime(slot.Date, slot.Time)).GetAll()
		if err != nil {
			return fmt.Errorf("check slot exists: %w", err)
		}
		if len(docs) > 0 {
			return repository.ErrSlotExists
		}
		return tx.Create(s.collection().Doc(slot.ID), slot)
	})
	if err != nil {
		if errors.Is(err, repository.ErrSlotExists) {
			return err
		}
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

func (s *SlotStore) sameTime(date, clock string) firestore.Query {
	return s.collection().Where("date", "==", date).Where("time", "==", clock).Limit(1)
}

func (s *SlotStore) Exists(ctx context.Context, date, clock string) (bool, error) {
	iter := s.sameTime(date, clock).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}
	return true, nil
}

// Reserve читает и обновляет документ слота в одной транзакции.
// Firestore откатывает транзакцию, если документ изменился после чтения.
// Транзакция также перезаписывает стража даты слота, поэтому конфликтует
// с ReservationStore.CreateChecked на ту же дату.
func (s *SlotStore) Reserve(ctx context.Context, id string, booker model.Booker, check repository.SlotCheck) (*model.Slot, error) {
	ref := s.collection().Doc(id)

	var reserved *model.Slot
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return repository.ErrSlotNotFound
			}
			return fmt.Errorf("get slot: %w", err)
		}

		slot, err := decodeSlot(snap)
		if err != nil {
			return err
		}
		if !slot.Available {
			return repository.ErrSlotAlreadyBooked
		}

		guard := guardRef(s.client, slot.Date)
		if _, err := tx.Get(guard); err != nil && !isNotFound(err) {
			return fmt.Errorf("get reservation day: %w", err)
		}

		if check != nil {
			docs, err := tx.Documents(reservationsByDate(s.client, slot.Date)).GetAll()
			if err != nil {
				return fmt.Errorf("list reservations: %w", err)
			}
			existing, err := decodeReservations(docs)
			if err != nil {
				return err
			}
			if err := check(slot, existing); err != nil {
				return err
			}
		}

		err = tx.Update(ref, []firestore.Update{
			{Path: "available", Value: false},
			{Path: "bookedBy", Value: booker},
		})
		if err != nil {
			return fmt.Errorf("book slot: %w", err)
		}

		if err := touchGuard(tx, guard); err != nil {
			return err
		}

		slot.Available = false
		slot.BookedBy = &booker
		reserved = slot
		return nil
	}, firestore.MaxAttempts(transactionAttempts))
	if err != nil {
		return nil, err
	}

	return reserved, nil
}

func guardRef(client *firestore.Client, date string) *firestore.DocumentRef {
	return client.Collection(guardsCollection).Doc(date)
}

func touchGuard(tx *firestore.Transaction, ref *firestore.DocumentRef) error {
	err := tx.Set(ref, map[string]interface{}{
		"count":     firestore.Increment(1),
		"updatedAt": time.Now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("update reservation day: %w", err)
	}
	return nil
}

func reservationsByDate(client *firestore.Client, date string) firestore.Query {
	return client.Collection(reservationsCollection).Where("date", "==", date)
}

type ReservationStore struct {
	client *firestore.Client
}

func NewReservationStore(client *firestore.Client) *ReservationStore {
	return &ReservationStore{client: client}
}

func decodeReservations(docs []*firestore.DocumentSnapshot) ([]*model.Reservation, error) {
	reservations := make([]*model.Reservation, 0, len(docs))
	for _, doc := range docs {
		var r model.Reservation
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("decode reservation %s: %w", doc.Ref.ID, err)
		}
		r.ID = doc.Ref.ID
		reservations = append(reservations, &r)
	}
	return reservations, nil
}

func (s *ReservationStore) ListByDate(ctx context.Context, date string) ([]*model.Reservation, error) {
	docs, err := reservationsByDate(s.client, date).OrderBy("startTime", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return decodeReservations(docs)
}

// CreateChecked: все чтения (страж даты, брони и занятые слоты даты)
// выполняются до записей, как того требует Firestore.
func (s *ReservationStore) CreateChecked(ctx context.Context, reservation *model.Reservation, check repository.ReservationCheck) error {
	guard := guardRef(s.client, reservation.Date)
	ref := s.client.Collection(reservationsCollection).Doc(reservation.ID)
	booked := s.client.Collection(slotsCollection).
		Where("date", "==", reservation.Date).
		Where("available", "==", false)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(guard); err != nil && !isNotFound(err) {
			return fmt.Errorf("get reservation day: %w", err)
		}

		docs, err := tx.Documents(reservationsByDate(s.client, reservation.Date)).GetAll()
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}

		existing, err := decodeReservations(docs)
		if err != nil {
			return err
		}

		slotDocs, err := tx.Documents(booked).GetAll()
		if err != nil {
			return fmt.Errorf("list booked slots: %w", err)
		}
		for _, doc := range slotDocs {
			slot, err := decodeSlot(doc)
			if err != nil {
				return err
			}
			existing = append(existing, slot.Occupancy())
		}

		if err := check(existing); err != nil {
			return err
		}

		if err := tx.Create(ref, reservation); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		return touchGuard(tx, guard)
	}, firestore.MaxAttempts(transactionAttempts))
}
