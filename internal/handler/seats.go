package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dquispe/cineticket/internal/service"
)

// SeatHandler serves the public seat map and occupancy views.
type SeatHandler struct {
	Svc *service.ReservationService
}

func NewSeatHandler(svc *service.ReservationService) *SeatHandler {
	return &SeatHandler{Svc: svc}
}

// Seats handles GET /v1/cinemas/:cinemaId/showtimes/:showtimeId/seats. The
// layout is generated, not stored; only occupancy comes from the database.
func (h *SeatHandler) Seats(c echo.Context) error {
	cinemaID := c.Param("cinemaId")
	showtimeID := c.Param("showtimeId")
	if cinemaID == "" || showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cinema and showtime required"})
	}
	seats, err := h.Svc.GetSeatsByCinemaAndShowtime(c.Request().Context(), cinemaID, showtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load seats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cinema_id":   cinemaID,
		"showtime_id": showtimeID,
		"seats":       seats,
	})
}

// Occupancy handles GET /v1/showtimes/:showtimeId/occupancy.
func (h *SeatHandler) Occupancy(c echo.Context) error {
	showtimeID := c.Param("showtimeId")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime required"})
	}
	stats, err := h.Svc.GetShowtimeOccupancyStats(c.Request().Context(), showtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load occupancy failed"})
	}
	return c.JSON(http.StatusOK, stats)
}
