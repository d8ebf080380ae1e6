// Package metrics exposes the Prometheus counters tracked by the
// reservation core. The /metrics endpoint serves the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReservationsCreated counts seat holds written (one per seat).
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineticket_reservations_created_total",
		Help: "Seat reservations created.",
	})

	// TicketsConfirmed counts tickets that reached confirmed.
	TicketsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineticket_tickets_confirmed_total",
		Help: "Tickets confirmed after successful payment.",
	})

	// TicketsCancelled counts tickets cancelled explicitly or after a
	// failed payment.
	TicketsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineticket_tickets_cancelled_total",
		Help: "Tickets cancelled.",
	})

	// SweptReservations counts expired holds removed by cleanup sweeps.
	SweptReservations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineticket_swept_reservations_total",
		Help: "Expired seat reservations removed by sweeps.",
	})

	// SweptTickets counts stale pending tickets marked expired.
	SweptTickets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineticket_swept_tickets_total",
		Help: "Stale pending tickets marked expired by sweeps.",
	})
)
