package model

import "time"

// Reservation statuses. A hold starts out reserved and either becomes
// purchased when its ticket is confirmed or is deleted (cancel or expiry
// sweep). purchased rows are kept indefinitely.
const (
	ReservationStatusReserved  = "reserved"
	ReservationStatusPurchased = "purchased"
)

// SeatReservation is a temporary claim on one seat of one showtime. The
// (ShowtimeID, SeatLabel) pair is unique in the database, which is what
// keeps two buyers from holding the same seat at once.
//
// Fields:
//  ID         – primary key identifier.
//  SeatLabel  – catalog seat identifier, e.g. "B5".
//  ShowtimeID – showtime the seat belongs to.
//  MovieID    – movie being screened (denormalized for cascade cleanup).
//  CinemaID   – cinema where the showtime runs.
//  UserID     – owner of the hold.
//  TicketID   – ticket the hold was created for (nil until linked).
//  Status     – reserved or purchased.
//  ReservedAt – when the hold was created.
//  ExpiresAt  – hold deadline; nil once purchased.
type SeatReservation struct {
	ID         uint64     `json:"id"`          // seat_reservations.id
	SeatLabel  string     `json:"seat_label"`  // seat_reservations.seat_label
	ShowtimeID string     `json:"showtime_id"` // seat_reservations.showtime_id
	MovieID    string     `json:"movie_id"`    // seat_reservations.movie_id
	CinemaID   string     `json:"cinema_id"`   // seat_reservations.cinema_id
	UserID     uint64     `json:"user_id"`     // seat_reservations.user_id
	TicketID   *uint64    `json:"ticket_id"`   // seat_reservations.ticket_id (nullable)
	Status     string     `json:"status"`      // seat_reservations.status
	ReservedAt time.Time  `json:"reserved_at"` // seat_reservations.reserved_at
	ExpiresAt  *time.Time `json:"expires_at"`  // seat_reservations.expires_at (nullable)
}

// Active reports whether the hold still blocks the seat: purchased rows
// always do, reserved rows only until their deadline.
func (r *SeatReservation) Active(now time.Time) bool {
	if r.Status == ReservationStatusPurchased {
		return true
	}
	if r.Status != ReservationStatusReserved {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}
