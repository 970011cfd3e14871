// Package httpapi отдаёт сервис бронирования по HTTP (JSON).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/metrics"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

type Options struct {
	RateLimitPerMin int
	Production      bool
}

// NewRouter собирает gin.Engine со всеми маршрутами
func NewRouter(bookingService *service.BookingService, m *metrics.Metrics, opts Options, logger *zap.Logger) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	h := NewHandler(bookingService, logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.Use(RateLimit(opts.RateLimitPerMin, logger))
	{
		api.GET("/slots", h.ListSlots)
		api.POST("/slots/:id/reserve", h.ReserveSlot)

		api.GET("/reservations", h.ListReservations)
		api.GET("/reservations/availability", h.Availability)
		api.POST("/reservations", h.CreateReservation)
	}

	return r
}

// NewServer оборачивает роутер в http.Server с таймаутами
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
