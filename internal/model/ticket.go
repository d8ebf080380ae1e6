package model

import "time"

// Ticket statuses. pending is the only non-terminal state: it moves to
// confirmed on successful payment, to cancelled on explicit cancel or
// payment failure, and to expired when the daily sweep finds it older than
// the pending deadline.
const (
	TicketStatusPending   = "pending"
	TicketStatusConfirmed = "confirmed"
	TicketStatusCancelled = "cancelled"
	TicketStatusExpired   = "expired"
)

// TicketPurchase is one purchase attempt spanning one or more seats of a
// single showtime.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – buyer.
//  MovieID          – movie of the showtime.
//  ShowtimeID       – showtime the seats belong to.
//  CinemaID         – cinema where the showtime runs.
//  Seats            – seat labels in the order the buyer selected them.
//  ReservationIDs   – seat_reservations rows created for this purchase.
//  TotalAmountCents – price for the whole ticket in cents.
//  PurchaseDate     – when the purchase attempt was created.
//  Status           – pending, confirmed, cancelled or expired.
//  IdempotencyKey   – client-supplied key that makes retried creates safe.
type TicketPurchase struct {
	ID               uint64    // tickets.id
	UserID           uint64    // tickets.user_id
	MovieID          string    // tickets.movie_id
	ShowtimeID       string    // tickets.showtime_id
	CinemaID         string    // tickets.cinema_id
	Seats            []string  // ticket_seats.seat_label ordered by position
	ReservationIDs   []uint64  // ticket_seats.reservation_id ordered by position
	TotalAmountCents uint32    // tickets.total_amount_cents
	PurchaseDate     time.Time // tickets.purchase_date
	Status           string    // tickets.status
	IdempotencyKey   string    // tickets.idempotency_key
}

// Pending reports whether the ticket can still be confirmed or cancelled.
func (t *TicketPurchase) Pending() bool { return t.Status == TicketStatusPending }
