package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_bot/internal/availability"
	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/Freeeeeet/booking_bot/internal/repository"
	"github.com/Freeeeeet/booking_bot/internal/service"
)

type Handler struct {
	service *service.BookingService
	logger  *zap.Logger
}

func NewHandler(bookingService *service.BookingService, logger *zap.Logger) *Handler {
	return &Handler{
		service: bookingService,
		logger:  logger,
	}
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Note  string `json:"note"`
}

type reservationRequest struct {
	contactRequest
	Date     string `json:"date"`
	Start    string `json:"start"`
	Duration int    `json:"duration"`
}

// slotView публичное представление слота: контакты бронирующего не отдаются
type slotView struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Available       bool   `json:"available"`
	BookedBy        string `json:"booked_by,omitempty"`
}

func newSlotView(slot *model.Slot) slotView {
	v := slotView{
		ID:              slot.ID,
		Date:            slot.Date,
		Time:            slot.Time,
		DurationMinutes: slot.DurationMinutes,
		Available:       slot.Available,
	}
	if slot.BookedBy != nil {
		v.BookedBy = slot.BookedBy.Name
	}
	return v
}

func newSlotViews(slots []*model.Slot) []slotView {
	views := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, newSlotView(slot))
	}
	return views
}

type reservationView struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Name            string `json:"name"`
	Confirmed       bool   `json:"confirmed"`
}

func newReservationView(r *model.Reservation) reservationView {
	return reservationView{
		ID:              r.ID,
		Date:            r.Date,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		Name:            r.Name,
		Confirmed:       r.Confirmed,
	}
}

type slotsResponse struct {
	Slots []slotView `json:"slots"`
}

type availabilityResponse struct {
	Starts      []string `json:"starts"`
	TickMinutes int      `json:"tick_minutes"`
}

type conflictResponse struct {
	Error string     `json:"error"`
	Slots []slotView `json:"slots,omitempty"`
	// Бронь, с которой пересеклась заявка
	ConflictsWith string `json:"conflictsWith,omitempty"`
}

func (h *Handler) ListSlots(c *gin.Context) {
	slots, err := h.service.ListSlots(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotsResponse{Slots: newSlotViews(slots)})
}

func (h *Handler) ReserveSlot(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	slot, err := h.service.ReserveSlot(c.Request.Context(), c.Param("id"), service.Contact(req))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newSlotView(slot))
	case errors.Is(err, repository.ErrSlotAlreadyBooked):
		// Отдаём актуальный список, чтобы клиент перерисовал слоты
		resp := conflictResponse{Error: "this slot has just been booked, please pick another one"}
		if slots, listErr := h.service.ListSlots(c.Request.Context()); listErr == nil {
			resp.Slots = newSlotViews(slots)
		} else {
			h.logger.Warn("Failed to reload slots after conflict", zap.Error(listErr))
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, repository.ErrSlotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
	case service.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.internalError(c, err)
	}
}

func (h *Handler) ListReservations(c *gin.Context) {
	reservations, err := h.service.ListReservations(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.internalError(c, err)
		return
	}
	views := make([]reservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, newReservationView(r))
	}
	c.JSON(http.StatusOK, gin.H{"reservations": views})
}

func (h *Handler) Availability(c *gin.Context) {
	duration, err := strconv.Atoi(c.Query("duration"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a number of minutes"})
		return
	}

	starts, err := h.service.Availability(c.Request.Context(), c.Query("date"), duration)
	switch {
	case err == nil:
		if starts == nil {
			starts = []string{}
		}
		c.JSON(http.StatusOK, availabilityResponse{Starts: starts, TickMinutes: h.service.TickMinutes()})
	case service.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.internalError(c, err)
	}
}

func (h *Handler) CreateReservation(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	reservation, err := h.service.Reserve(c.Request.Context(), service.ReservationInput{
		Contact:         service.Contact(req.contactRequest),
		Date:            req.Date,
		StartTime:       req.Start,
		DurationMinutes: req.Duration,
	})

	var conflict *availability.ConflictError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, newReservationView(reservation))
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, conflictResponse{
			Error:         conflict.Reason.Error(),
			ConflictsWith: conflict.StartTime,
		})
	case service.IsConflict(err):
		c.JSON(http.StatusConflict, conflictResponse{Error: err.Error()})
	case service.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.internalError(c, err)
	}
}

func (h *Handler) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please try again later"})
}
