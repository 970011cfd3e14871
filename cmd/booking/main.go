package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/app"
	"github.com/Freeeeeet/booking_bot/internal/config"
	"github.com/Freeeeeet/booking_bot/internal/controller"
	"github.com/Freeeeeet/booking_bot/internal/controller/board"
	"github.com/Freeeeeet/booking_bot/internal/controller/httpapi"
)

const (
	Version = "0.1.0"
	appName = "booking"

	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Makeup appointment booking service",
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), migrateCmd(), seedCmd(), boardCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// setup загружает конфиг и создаёт логгер
func setup() (*config.Config, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	return cfg, logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, Telegram bot and slot generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger := setup()
	defer logger.Sync()

	logger.Info("Starting booking service",
		zap.String("version", Version),
		zap.String("store", cfg.Store),
		zap.String("event_date", cfg.EventDate),
	)

	a, err := app.Build(ctx, cfg, logger, app.BuildOptions{Migrate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := app.NewScheduler(a.Service, cfg.SlotSyncInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := httpapi.NewRouter(a.Service, a.Metrics, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		Production:      cfg.IsProduction(),
	}, logger)
	srv := httpapi.NewServer(cfg.HTTPAddr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.TelegramToken != "" {
		if err := startBot(ctx, cfg.TelegramToken, a, logger); err != nil {
			return err
		}
	} else {
		logger.Warn("TELEGRAM_TOKEN is empty, bot disabled")
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	return nil
}

func startBot(ctx context.Context, token string, a *app.App, logger *zap.Logger) error {
	b, err := bot.New(token)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	ctrl := controller.NewBotController(b, a.Service, logger)
	if err := ctrl.RegisterHandlers(ctx); err != nil {
		// Меню команд не критично, бот работает и без него
		logger.Warn("Bot started without commands menu", zap.Error(err))
	}

	go func() {
		if err := ctrl.Start(ctx); err != nil {
			logger.Error("Bot stopped", zap.Error(err))
		}
	}()
	return nil
}

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := setup()
			defer logger.Sync()

			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrations apply only to STORE=%s, got %q", config.StorePostgres, cfg.Store)
			}

			pool, err := app.OpenPostgres(ctx, cfg.GetDBDSN())
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			if status {
				version, err := migrator.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("migration version: %d\n", version)
				return nil
			}

			return migrator.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Print current migration version without applying")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create missing slots for the event date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := setup()
			defer logger.Sync()

			a, err := app.Build(ctx, cfg, logger, app.BuildOptions{Migrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Service.GenerateSlots(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("created %d slots for %s\n", created, cfg.EventDate)
			return nil
		},
	}
}

func boardCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Render the day board to a PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := setup()
			defer logger.Sync()

			a, err := app.Build(ctx, cfg, logger, app.BuildOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			slots, err := a.Service.ListSlots(ctx)
			if err != nil {
				return err
			}
			reservations, err := a.Service.ListReservations(ctx, cfg.EventDate)
			if err != nil {
				return err
			}

			img, err := board.Render(cfg.EventDate, slots, reservations)
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, img, 0o644); err != nil {
				return fmt.Errorf("write board: %w", err)
			}

			fmt.Printf("board saved to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "board.png", "Output PNG path")
	return cmd
}
