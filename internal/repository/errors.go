// Package repository implements MySQL persistence for seat reservations,
// tickets and accounts. Sentinel errors defined here let handlers map
// failure modes onto HTTP status codes without inspecting SQL errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by another user. Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrSeatUnavailable is returned when one of the requested seats already
// carries an active hold for the showtime. The unique key on
// (showtime_id, seat_label) raises it even under concurrent requests.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrDuplicateTicket is returned when a ticket insert collides with the
// unique (user_id, idempotency_key) pair, i.e. a concurrent retry already
// stored the ticket.
var ErrDuplicateTicket = errors.New("duplicate ticket")

// ErrTicketNotFound is returned when a ticket ID does not exist.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrTicketNotPending is returned when a confirm or cancel targets a ticket
// that has already reached a terminal status.
var ErrTicketNotPending = errors.New("ticket not pending")

// ErrEmailTaken is returned by user registration when the email is in use.
var ErrEmailTaken = errors.New("email already registered")

// ErrUserNotFound is returned when no account matches the given credentials
// or identifier.
var ErrUserNotFound = errors.New("user not found")

// ErrTokenNotFound is returned when a refresh token is unknown, revoked or
// expired.
var ErrTokenNotFound = errors.New("refresh token not found")
