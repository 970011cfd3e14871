// Package mongodb хранит слоты и брони в MongoDB.
// Для CreateChecked нужен replica set: используются транзакции.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
)

const (
	slotsCollection        = "slots"
	reservationsCollection = "reservations"
	guardsCollection       = "reservation_days"
)

// Connect подключается к MongoDB и проверяет соединение
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}

// EnsureIndexes создаёт индексы, на которые опираются хранилища
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(slotsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create slots index: %w", err)
	}

	_, err = db.Collection(reservationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create reservations index: %w", err)
	}

	return nil
}

type SlotStore struct {
	client       *mongo.Client
	coll         *mongo.Collection
	reservations *mongo.Collection
	guards       *mongo.Collection
}

func NewSlotStore(db *mongo.Database) *SlotStore {
	return &SlotStore{
		client:       db.Client(),
		coll:         db.Collection(slotsCollection),
		reservations: db.Collection(reservationsCollection),
		guards:       db.Collection(guardsCollection),
	}
}

func (s *SlotStore) List(ctx context.Context) ([]*model.Slot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	var slots []*model.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}

	return slots, nil
}

func (s *SlotStore) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	var slot model.Slot
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&slot); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}
	return &slot, nil
}

func (s *SlotStore) Create(ctx context.Context, slot *model.Slot) error {
	if _, err := s.coll.InsertOne(ctx, slot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrSlotExists
		}
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

func (s *SlotStore) Exists(ctx context.Context, date, clock string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"date": date, "time": clock}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}
	return count > 0, nil
}

// Reserve бронирует слот в транзакции, которая первым делом инкрементирует
// стража даты слота, как и ReservationStore.CreateChecked. Условное обновление
// по available=true пропускает только первый запрос.
func (s *SlotStore) Reserve(ctx context.Context, id string, booker model.Booker, check repository.SlotCheck) (*model.Slot, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var slot model.Slot
		if err := s.coll.FindOne(sc, bson.M{"_id": id}).Decode(&slot); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, repository.ErrSlotNotFound
			}
			return nil, fmt.Errorf("get slot: %w", err)
		}
		if !slot.Available {
			return nil, repository.ErrSlotAlreadyBooked
		}

		if err := lockDate(sc, s.guards, slot.Date); err != nil {
			return nil, err
		}

		if check != nil {
			existing, err := findReservations(sc, s.reservations, slot.Date)
			if err != nil {
				return nil, fmt.Errorf("list reservations: %w", err)
			}
			if err := check(&slot, existing); err != nil {
				return nil, err
			}
		}

		res, err := s.coll.UpdateOne(sc,
			bson.M{"_id": id, "available": true},
			bson.M{"$set": bson.M{"available": false, "booked_by": booker}},
		)
		if err != nil {
			return nil, fmt.Errorf("book slot: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, repository.ErrSlotAlreadyBooked
		}

		slot.Available = false
		slot.BookedBy = &booker
		return &slot, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.Slot), nil
}

// lockDate инкрементирует документ-страж даты. Параллельная транзакция
// на ту же дату получает write conflict и перезапускается драйвером.
func lockDate(sc mongo.SessionContext, guards *mongo.Collection, date string) error {
	_, err := guards.UpdateOne(sc,
		bson.M{"_id": date},
		bson.M{"$inc": bson.M{"count": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("lock reservation date: %w", err)
	}
	return nil
}

func findReservations(ctx context.Context, coll *mongo.Collection, date string) ([]*model.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "created_at", Value: 1}})

	cursor, err := coll.Find(ctx, bson.M{"date": date}, opts)
	if err != nil {
		return nil, err
	}

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

type ReservationStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	slots  *mongo.Collection
	guards *mongo.Collection
}

func NewReservationStore(client *mongo.Client, db *mongo.Database) *ReservationStore {
	return &ReservationStore{
		client: client,
		coll:   db.Collection(reservationsCollection),
		slots:  db.Collection(slotsCollection),
		guards: db.Collection(guardsCollection),
	}
}

func (s *ReservationStore) ListByDate(ctx context.Context, date string) ([]*model.Reservation, error) {
	reservations, err := findReservations(ctx, s.coll, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// CreateChecked: первой операцией транзакция инкрементирует документ-страж даты,
// затем проверяет брони и занятые слоты этой даты.
func (s *ReservationStore) CreateChecked(ctx context.Context, reservation *model.Reservation, check repository.ReservationCheck) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := lockDate(sc, s.guards, reservation.Date); err != nil {
			return nil, err
		}

		existing, err := findReservations(sc, s.coll, reservation.Date)
		if err != nil {
			return nil, fmt.Errorf("list reservations: %w", err)
		}

		cursor, err := s.slots.Find(sc, bson.M{"date": reservation.Date, "available": false})
		if err != nil {
			return nil, fmt.Errorf("list booked slots: %w", err)
		}
		var booked []*model.Slot
		if err := cursor.All(sc, &booked); err != nil {
			return nil, fmt.Errorf("decode booked slots: %w", err)
		}
		existing = append(existing, repository.Occupancy(booked)...)

		if err := check(existing); err != nil {
			return nil, err
		}

		if _, err := s.coll.InsertOne(sc, reservation); err != nil {
			return nil, fmt.Errorf("create reservation: %w", err)
		}

		return nil, nil
	})

	return err
}
