package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dquispe/cineticket/internal/model"
	"github.com/dquispe/cineticket/internal/repository"
	"github.com/dquispe/cineticket/internal/service"
)

// ReservationHandler serves the purchase workflow endpoints. The buyer's
// identity comes from the JWT context, never from the body.
type ReservationHandler struct {
	Svc     *service.ReservationService
	Gateway service.Gateway
}

func NewReservationHandler(svc *service.ReservationService, gw service.Gateway) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc, Gateway: gw}
}

type createReservationReq struct {
	MovieID          string   `json:"movie_id" validate:"required"`
	ShowtimeID       string   `json:"showtime_id" validate:"required"`
	CinemaID         string   `json:"cinema_id" validate:"required"`
	Seats            []string `json:"seats" validate:"required,min=1"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	IdempotencyKey   string   `json:"idempotency_key"`
}

type ticketResp struct {
	TicketID         uint64   `json:"ticket_id"`
	ReservationIDs   []uint64 `json:"reservation_ids"`
	MovieID          string   `json:"movie_id"`
	ShowtimeID       string   `json:"showtime_id"`
	CinemaID         string   `json:"cinema_id"`
	Seats            []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	PurchaseDate     string   `json:"purchase_date"`
	Status           string   `json:"status"`
}

func toTicketResp(t *model.TicketPurchase) ticketResp {
	return ticketResp{
		TicketID:         t.ID,
		ReservationIDs:   t.ReservationIDs,
		MovieID:          t.MovieID,
		ShowtimeID:       t.ShowtimeID,
		CinemaID:         t.CinemaID,
		Seats:            t.Seats,
		TotalAmountCents: t.TotalAmountCents,
		PurchaseDate:     t.PurchaseDate.Format(time.RFC3339),
		Status:           t.Status,
	}
}

// Create handles POST /v1/reservations. It holds the seats and opens a
// pending ticket; the client then confirms, pays or cancels. A missing
// idempotency key is generated server-side so the stored ticket always
// carries one.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	ticket, err := h.Svc.CreateReservation(c.Request().Context(), service.CreateReservationInput{
		UserID:           userID,
		MovieID:          req.MovieID,
		ShowtimeID:       req.ShowtimeID,
		CinemaID:         req.CinemaID,
		SeatLabels:       req.Seats,
		TotalAmountCents: req.TotalAmountCents,
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSeats), errors.Is(err, service.ErrUnknownSeat):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrSeatUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
	}
	return c.JSON(http.StatusCreated, toTicketResp(ticket))
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	userID, ticketID, ok := h.identify(c)
	if !ok {
		return nil
	}
	ticket, err := h.Svc.ConfirmReservation(c.Request().Context(), userID, ticketID)
	if err != nil {
		return h.ticketError(c, err, "confirm failed")
	}
	return c.JSON(http.StatusOK, toTicketResp(ticket))
}

// Cancel handles POST /v1/reservations/:id/cancel. The held seats become
// available again immediately.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, ticketID, ok := h.identify(c)
	if !ok {
		return nil
	}
	if err := h.Svc.CancelReservation(c.Request().Context(), userID, ticketID); err != nil {
		return h.ticketError(c, err, "cancel failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.TicketStatusCancelled})
}

// Pay handles POST /v1/reservations/:id/pay. It charges the gateway and
// settles the ticket either way.
func (h *ReservationHandler) Pay(c echo.Context) error {
	userID, ticketID, ok := h.identify(c)
	if !ok {
		return nil
	}
	ticket, err := h.Svc.CompletePurchase(c.Request().Context(), h.Gateway, userID, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) || errors.Is(err, repository.ErrForbidden) ||
			errors.Is(err, repository.ErrTicketNotPending) || errors.Is(err, repository.ErrSeatUnavailable) {
			return h.ticketError(c, err, "payment failed")
		}
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toTicketResp(ticket))
}

// List handles GET /v1/reservations, the user's purchase history.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tickets, err := h.Svc.GetUserReservations(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]ticketResp, 0, len(tickets))
	for i := range tickets {
		out = append(out, toTicketResp(&tickets[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, ticketID, ok := h.identify(c)
	if !ok {
		return nil
	}
	ticket, err := h.Svc.GetTicket(c.Request().Context(), userID, ticketID)
	if err != nil {
		return h.ticketError(c, err, "load failed")
	}
	return c.JSON(http.StatusOK, toTicketResp(ticket))
}

// identify pulls the caller and the :id path parameter. When either is
// missing the error response has already been written and ok is false.
func (h *ReservationHandler) identify(c echo.Context) (userID, ticketID uint64, ok bool) {
	userID, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, 0, false
	}
	ticketID, err = strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || ticketID == 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
		return 0, 0, false
	}
	return userID, ticketID, true
}

func (h *ReservationHandler) ticketError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrTicketNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not pending"})
	case errors.Is(err, repository.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats are no longer held"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}
