// Package queue defines the messages exchanged over RabbitMQ and the
// publisher/consumer pair for confirmed tickets.
package queue

// TicketConfirmedEvent is published when a ticket purchase is confirmed. It
// carries enough for downstream consumers (notifications, analytics) to act
// without querying the primary database.
type TicketConfirmedEvent struct {
	TicketID         uint64   `json:"ticket_id"`
	UserID           uint64   `json:"user_id"`
	MovieID          string   `json:"movie_id"`
	ShowtimeID       string   `json:"showtime_id"`
	CinemaID         string   `json:"cinema_id"`
	Seats            []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	ConfirmedAt      string   `json:"confirmed_at"`
}
