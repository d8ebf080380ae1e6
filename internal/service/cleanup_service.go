package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dquispe/cineticket/internal/logger"
	"github.com/dquispe/cineticket/internal/metrics"
)

// PendingTicketTTL is how long a ticket may stay pending before the daily
// cleanup marks it expired.
const PendingTicketTTL = 24 * time.Hour

// ReservationSweeper deletes reservations whose hold has lapsed, reporting
// the showtimes it touched. Satisfied by *repository.ReservationRepo.
type ReservationSweeper interface {
	DeleteExpired(ctx context.Context) (int64, []string, error)
}

// TicketExpirer marks stale pending tickets expired.
// Satisfied by *repository.TicketRepo.
type TicketExpirer interface {
	ExpireOldPending(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupResult reports one sweep: how many rows it touched and a
// human-readable summary.
type CleanupResult struct {
	CleanedCount int64  `json:"cleaned_count"`
	Message      string `json:"message"`
}

// CleanupService runs the periodic maintenance sweeps.
type CleanupService struct {
	reservations ReservationSweeper
	tickets      TicketExpirer
	stats        StatsCache
	pendingTTL   time.Duration
	now          func() time.Time
}

// NewCleanupService wires the sweeps. stats may be nil; pendingTTL <= 0
// falls back to PendingTicketTTL.
func NewCleanupService(rs ReservationSweeper, ts TicketExpirer, stats StatsCache, pendingTTL time.Duration) *CleanupService {
	if pendingTTL <= 0 {
		pendingTTL = PendingTicketTTL
	}
	return &CleanupService{
		reservations: rs,
		tickets:      ts,
		stats:        stats,
		pendingTTL:   pendingTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CleanupExpiredReservations deletes every reservation whose hold expiry
// has passed, across all showtimes, and drops the cached occupancy of each
// showtime that lost rows.
func (s *CleanupService) CleanupExpiredReservations(ctx context.Context) (CleanupResult, error) {
	n, showtimes, err := s.reservations.DeleteExpired(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	metrics.SweptReservations.Add(float64(n))
	if s.stats != nil {
		for _, id := range showtimes {
			if err := s.stats.Invalidate(ctx, id); err != nil {
				logger.Warn("occupancy cache invalidate failed",
					zap.String("showtime_id", id), zap.Error(err))
			}
		}
	}
	return CleanupResult{
		CleanedCount: n,
		Message:      fmt.Sprintf("se eliminaron %d reservas expiradas", n),
	}, nil
}

// CleanupOldPendingTickets expires tickets that have sat pending longer
// than the configured TTL.
func (s *CleanupService) CleanupOldPendingTickets(ctx context.Context) (CleanupResult, error) {
	cutoff := s.now().Add(-s.pendingTTL)
	n, err := s.tickets.ExpireOldPending(ctx, cutoff)
	if err != nil {
		return CleanupResult{}, err
	}
	metrics.SweptTickets.Add(float64(n))
	return CleanupResult{
		CleanedCount: n,
		Message:      fmt.Sprintf("se marcaron %d boletos pendientes como expirados", n),
	}, nil
}

// PerformDailyCleanup runs both sweeps and logs their outcome. The first
// error stops the run.
func (s *CleanupService) PerformDailyCleanup(ctx context.Context) ([]CleanupResult, error) {
	res, err := s.CleanupExpiredReservations(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.CleanupOldPendingTickets(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("daily cleanup finished",
		zap.Int64("reservations", res.CleanedCount),
		zap.Int64("tickets", tickets.CleanedCount))
	return []CleanupResult{res, tickets}, nil
}
