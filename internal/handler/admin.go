package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dquispe/cineticket/internal/service"
)

// AdminHandler exposes maintenance operations. All routes require the
// ADMIN role; the sweeps are the same ones the scheduled worker runs.
type AdminHandler struct {
	Reservations *service.ReservationService
	Cleanup      *service.CleanupService
}

func NewAdminHandler(rs *service.ReservationService, cs *service.CleanupService) *AdminHandler {
	return &AdminHandler{Reservations: rs, Cleanup: cs}
}

// CleanupExpired handles POST /v1/admin/cleanup/expired.
func (h *AdminHandler) CleanupExpired(c echo.Context) error {
	res, err := h.Cleanup.CleanupExpiredReservations(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cleanup failed"})
	}
	return c.JSON(http.StatusOK, res)
}

// CleanupPending handles POST /v1/admin/cleanup/pending.
func (h *AdminHandler) CleanupPending(c echo.Context) error {
	res, err := h.Cleanup.CleanupOldPendingTickets(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cleanup failed"})
	}
	return c.JSON(http.StatusOK, res)
}

// CleanupMovie handles DELETE /v1/admin/movies/:movieId/reservations. It
// cascades over reservations and tickets of a withdrawn movie.
func (h *AdminHandler) CleanupMovie(c echo.Context) error {
	movieID := c.Param("movieId")
	if movieID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie required"})
	}
	if err := h.Reservations.CleanupMovieReservations(c.Request().Context(), movieID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cleanup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"movie_id": movieID, "status": "cleaned"})
}

// ShowtimeReservations handles GET /v1/admin/showtimes/:showtimeId/reservations,
// the raw active holds of one showtime.
func (h *AdminHandler) ShowtimeReservations(c echo.Context) error {
	showtimeID := c.Param("showtimeId")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime required"})
	}
	list, err := h.Reservations.GetReservationsByShowtime(c.Request().Context(), showtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, list)
}
