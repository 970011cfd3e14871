package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/availability"
	"github.com/Freeeeeet/booking_bot/internal/cache"
	"github.com/Freeeeeet/booking_bot/internal/config"
	"github.com/Freeeeeet/booking_bot/internal/metrics"
	"github.com/Freeeeeet/booking_bot/internal/repository"
	"github.com/Freeeeeet/booking_bot/internal/repository/firestoredb"
	"github.com/Freeeeeet/booking_bot/internal/repository/memory"
	"github.com/Freeeeeet/booking_bot/internal/repository/mongodb"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

// App собранные зависимости процесса
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Service *service.BookingService

	slots        repository.SlotStore
	reservations repository.ReservationStore
	closers      []func() error
}

type BuildOptions struct {
	// Применить миграции PostgreSQL перед стартом
	Migrate bool
}

// Build открывает хранилище из конфига, при наличии REDIS_ADDR оборачивает
// слоты кешем и собирает сервис бронирования.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts BuildOptions) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := a.openStores(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.slots = cache.NewSlotStore(a.slots, client, cfg.CacheTTL, a.Metrics, logger)
		logger.Info("Slot list cache enabled", zap.String("redis", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	}

	checker, err := availability.NewChecker(cfg.TickMinutes)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = service.NewBookingService(
		a.slots,
		a.reservations,
		checker,
		service.Event{
			Date:        cfg.EventDate,
			OpeningTime: cfg.OpeningTime,
			ClosingTime: cfg.ClosingTime,
			SlotMinutes: cfg.SlotMinutes,
		},
		a.Metrics,
		logger,
	)

	return a, nil
}

func (a *App) openStores(ctx context.Context, opts BuildOptions) error {
	cfg := a.Config
	a.Logger.Info("Opening store", zap.String("store", cfg.Store))

	switch cfg.Store {
	case config.StorePostgres:
		pool, err := OpenPostgres(ctx, cfg.GetDBDSN())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if opts.Migrate {
			if err := migrate(ctx, pool, a.Logger); err != nil {
				return err
			}
		}

		a.slots = repository.NewSlotRepository(pool)
		a.reservations = repository.NewReservationRepository(pool)

	case config.StoreFirestore:
		client, err := firestoredb.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)

		a.slots = firestoredb.NewSlotStore(client)
		a.reservations = firestoredb.NewReservationStore(client)

	case config.StoreMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })

		db := client.Database(cfg.MongoDatabase)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return err
		}

		a.slots = mongodb.NewSlotStore(db)
		a.reservations = mongodb.NewReservationStore(client, db)

	case config.StoreMemory:
		a.slots, a.reservations = memory.NewStores()

	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	return nil
}

// OpenPostgres создаёт пул соединений и проверяет доступность базы
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// Close освобождает ресурсы в обратном порядке открытия
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
