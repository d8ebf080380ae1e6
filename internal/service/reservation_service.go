// Package service implements the reservation workflow: holding seats,
// creating the pending ticket, confirming or cancelling it, and the cleanup
// sweeps that reclaim lapsed holds. Every multi-row state transition runs
// inside a single transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dquispe/cineticket/internal/cache"
	"github.com/dquispe/cineticket/internal/catalog"
	"github.com/dquispe/cineticket/internal/logger"
	"github.com/dquispe/cineticket/internal/metrics"
	"github.com/dquispe/cineticket/internal/model"
	"github.com/dquispe/cineticket/internal/queue"
	"github.com/dquispe/cineticket/internal/repository"
	"github.com/dquispe/cineticket/internal/txn"
)

// ErrNoSeats is returned when a reservation names no seats.
var ErrNoSeats = errors.New("no seats selected")

// ErrUnknownSeat is returned when a requested label is not part of the
// cinema's layout.
var ErrUnknownSeat = errors.New("unknown seat")

// HoldTTL is the default time a seat stays reserved before payment.
const HoldTTL = 10 * time.Minute

// ReservationStore is the slice of the reservation repository the service
// depends on. Satisfied by *repository.ReservationRepo.
type ReservationStore interface {
	CreateBatchTx(ctx context.Context, tx txn.Tx, recs []*model.SeatReservation) error
	LinkTicketTx(ctx context.Context, tx txn.Tx, reservationIDs []uint64, ticketID uint64) error
	MarkPurchasedTx(ctx context.Context, tx txn.Tx, ticketID uint64) (int64, error)
	DeleteByTicketTx(ctx context.Context, tx txn.Tx, ticketID uint64) (int64, error)
	SweepExpiredForShowtimeTx(ctx context.Context, tx txn.Tx, showtimeID string) (int64, error)
	ActiveSeatLabelsTx(ctx context.Context, tx txn.Tx, showtimeID string) (map[string]bool, error)
	ListActiveByShowtime(ctx context.Context, showtimeID string) ([]model.SeatReservation, error)
	CountActiveByShowtime(ctx context.Context, showtimeID string) (int, error)
	DeleteByMovieTx(ctx context.Context, tx txn.Tx, movieID string) (int64, error)
}

// TicketStore is the slice of the ticket repository the service depends on.
// Satisfied by *repository.TicketRepo.
type TicketStore interface {
	CreateTx(ctx context.Context, tx txn.Tx, t *model.TicketPurchase) error
	GetForUpdateTx(ctx context.Context, tx txn.Tx, ticketID, userID uint64) (*model.TicketPurchase, error)
	GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.TicketPurchase, error)
	GetByIDForUser(ctx context.Context, ticketID, userID uint64) (*model.TicketPurchase, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.TicketPurchase, error)
	UpdateStatusTx(ctx context.Context, tx txn.Tx, ticketID uint64, from, to string) error
	DeleteByMovieTx(ctx context.Context, tx txn.Tx, movieID string) (int64, error)
}

// StatsCache is the occupancy cache surface. Satisfied by
// *cache.OccupancyCache; a nil value disables caching.
type StatsCache interface {
	Get(ctx context.Context, showtimeID string, dst any) error
	Set(ctx context.Context, showtimeID string, v any) error
	Invalidate(ctx context.Context, showtimeID string) error
}

// EventPublisher sends a confirmed-ticket event to the broker.
type EventPublisher func(ctx context.Context, ev queue.TicketConfirmedEvent) error

// ReservationService orchestrates the purchase workflow over the two
// stores.
type ReservationService struct {
	txm          txn.Manager
	reservations ReservationStore
	tickets      TicketStore
	stats        StatsCache
	publish      EventPublisher
	holdTTL      time.Duration
	now          func() time.Time
}

// NewReservationService wires the service. stats and publish may be nil:
// occupancy is then always computed from the store and no events are
// emitted.
func NewReservationService(txm txn.Manager, rs ReservationStore, ts TicketStore, stats StatsCache, publish EventPublisher, holdTTL time.Duration) *ReservationService {
	if holdTTL <= 0 {
		holdTTL = HoldTTL
	}
	return &ReservationService{
		txm:          txm,
		reservations: rs,
		tickets:      ts,
		stats:        stats,
		publish:      publish,
		holdTTL:      holdTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateReservationInput carries everything needed to hold seats and open a
// pending ticket.
type CreateReservationInput struct {
	UserID           uint64
	MovieID          string
	ShowtimeID       string
	CinemaID         string
	SeatLabels       []string
	TotalAmountCents uint32
	IdempotencyKey   string
}

// CreateReservation holds the requested seats and creates a pending ticket
// referencing them, all in one transaction. Expired holds for the showtime
// are swept first inside the same transaction, so a returning buyer sees
// seats freed by lapsed holds. When an idempotency key is supplied and a
// ticket for it already exists, that ticket is returned unchanged.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (*model.TicketPurchase, error) {
	seats := dedupe(in.SeatLabels)
	if len(seats) == 0 {
		return nil, ErrNoSeats
	}
	for _, label := range seats {
		if !catalog.Valid(in.CinemaID, in.ShowtimeID, label) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSeat, label)
		}
	}

	if in.IdempotencyKey != "" {
		existing, err := s.tickets.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrTicketNotFound) {
			return nil, err
		}
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	swept, err := s.reservations.SweepExpiredForShowtimeTx(ctx, tx, in.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if swept > 0 {
		metrics.SweptReservations.Add(float64(swept))
	}

	taken, err := s.reservations.ActiveSeatLabelsTx(ctx, tx, in.ShowtimeID)
	if err != nil {
		return nil, err
	}
	var conflicts []string
	for _, label := range seats {
		if taken[label] {
			conflicts = append(conflicts, label)
		}
	}
	if len(conflicts) > 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrSeatUnavailable, strings.Join(conflicts, ", "))
	}

	now := s.now()
	expires := now.Add(s.holdTTL)
	recs := make([]*model.SeatReservation, 0, len(seats))
	for _, label := range seats {
		recs = append(recs, &model.SeatReservation{
			SeatLabel:  label,
			ShowtimeID: in.ShowtimeID,
			MovieID:    in.MovieID,
			CinemaID:   in.CinemaID,
			UserID:     in.UserID,
			Status:     model.ReservationStatusReserved,
			ReservedAt: now,
			ExpiresAt:  &expires,
		})
	}
	if err := s.reservations.CreateBatchTx(ctx, tx, recs); err != nil {
		return nil, err
	}

	ticket := &model.TicketPurchase{
		UserID:           in.UserID,
		MovieID:          in.MovieID,
		ShowtimeID:       in.ShowtimeID,
		CinemaID:         in.CinemaID,
		Seats:            seats,
		ReservationIDs:   reservationIDs(recs),
		TotalAmountCents: in.TotalAmountCents,
		PurchaseDate:     now,
		Status:           model.TicketStatusPending,
		IdempotencyKey:   in.IdempotencyKey,
	}
	if err := s.tickets.CreateTx(ctx, tx, ticket); err != nil {
		// A concurrent retry with the same idempotency key can slip past
		// the pre-transaction lookup; the unique key catches it here and
		// the stored ticket wins.
		if errors.Is(err, repository.ErrDuplicateTicket) && in.IdempotencyKey != "" {
			if existing, lookupErr := s.tickets.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.reservations.LinkTicketTx(ctx, tx, ticket.ReservationIDs, ticket.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	metrics.ReservationsCreated.Add(float64(len(seats)))
	s.invalidateStats(ctx, in.ShowtimeID)
	return ticket, nil
}

// ConfirmReservation flips the ticket's holds to purchased (clearing their
// expiry) and the ticket to confirmed, in one transaction. Only the owner
// may confirm, only while the ticket is pending, and only while all of its
// holds still exist; a ticket whose holds lapsed gets a conflict instead of
// claiming seats that may belong to someone else by now. A confirmed-ticket
// event is published after commit; publish failures are logged, never
// surfaced.
func (s *ReservationService) ConfirmReservation(ctx context.Context, userID, ticketID uint64) (*model.TicketPurchase, error) {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ticket, err := s.tickets.GetForUpdateTx(ctx, tx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	if !ticket.Pending() {
		return nil, repository.ErrTicketNotPending
	}
	// Every hold must still exist. A lapsed hold may have been swept and
	// its seat re-reserved by someone else, so a short count means the
	// ticket can no longer be confirmed.
	flipped, err := s.reservations.MarkPurchasedTx(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if flipped != int64(len(ticket.ReservationIDs)) {
		return nil, fmt.Errorf("%w: holds expired", repository.ErrSeatUnavailable)
	}
	if err := s.tickets.UpdateStatusTx(ctx, tx, ticketID, model.TicketStatusPending, model.TicketStatusConfirmed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	ticket.Status = model.TicketStatusConfirmed

	metrics.TicketsConfirmed.Inc()
	s.invalidateStats(ctx, ticket.ShowtimeID)
	if s.publish != nil {
		ev := queue.TicketConfirmedEvent{
			TicketID:         ticket.ID,
			UserID:           ticket.UserID,
			MovieID:          ticket.MovieID,
			ShowtimeID:       ticket.ShowtimeID,
			CinemaID:         ticket.CinemaID,
			Seats:            ticket.Seats,
			TotalAmountCents: ticket.TotalAmountCents,
			ConfirmedAt:      s.now().Format(time.RFC3339),
		}
		if err := s.publish(ctx, ev); err != nil {
			logger.Warn("ticket confirmed event not published",
				zap.Uint64("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, nil
}

// CancelReservation releases the ticket's holds and marks it cancelled, in
// one transaction. Same ownership and pending-only rules as confirm.
func (s *ReservationService) CancelReservation(ctx context.Context, userID, ticketID uint64) error {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ticket, err := s.tickets.GetForUpdateTx(ctx, tx, ticketID, userID)
	if err != nil {
		return err
	}
	if !ticket.Pending() {
		return repository.ErrTicketNotPending
	}
	if _, err := s.reservations.DeleteByTicketTx(ctx, tx, ticketID); err != nil {
		return err
	}
	if err := s.tickets.UpdateStatusTx(ctx, tx, ticketID, model.TicketStatusPending, model.TicketStatusCancelled); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	metrics.TicketsCancelled.Inc()
	s.invalidateStats(ctx, ticket.ShowtimeID)
	return nil
}

// CompletePurchase charges the (simulated) gateway for a pending ticket and
// settles it: confirm on approval, cancel on decline. A decline is reported
// to the caller after the cancel has been recorded.
func (s *ReservationService) CompletePurchase(ctx context.Context, gw Gateway, userID, ticketID uint64) (*model.TicketPurchase, error) {
	ticket, err := s.tickets.GetByIDForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	if !ticket.Pending() {
		return nil, repository.ErrTicketNotPending
	}
	if err := gw.Charge(ctx, ticket.TotalAmountCents); err != nil {
		if cancelErr := s.CancelReservation(ctx, userID, ticketID); cancelErr != nil {
			logger.Error("cancel after failed payment",
				zap.Uint64("ticket_id", ticketID), zap.Error(cancelErr))
		}
		return nil, fmt.Errorf("payment declined: %w", err)
	}
	return s.ConfirmReservation(ctx, userID, ticketID)
}

// GetUserReservations returns the user's tickets, newest purchase first.
func (s *ReservationService) GetUserReservations(ctx context.Context, userID uint64) ([]model.TicketPurchase, error) {
	return s.tickets.ListByUser(ctx, userID)
}

// GetTicket returns one ticket of the user.
func (s *ReservationService) GetTicket(ctx context.Context, userID, ticketID uint64) (*model.TicketPurchase, error) {
	return s.tickets.GetByIDForUser(ctx, ticketID, userID)
}

// GetReservationsByShowtime returns the active holds of a showtime.
func (s *ReservationService) GetReservationsByShowtime(ctx context.Context, showtimeID string) ([]model.SeatReservation, error) {
	return s.reservations.ListActiveByShowtime(ctx, showtimeID)
}

// GetSeatsByCinemaAndShowtime merges the deterministic layout with the
// active holds, marking occupied seats.
func (s *ReservationService) GetSeatsByCinemaAndShowtime(ctx context.Context, cinemaID, showtimeID string) ([]model.Seat, error) {
	active, err := s.reservations.ListActiveByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]bool, len(active))
	for _, r := range active {
		occupied[r.SeatLabel] = true
	}
	seats := catalog.Generate(cinemaID, showtimeID)
	for i := range seats {
		seats[i].IsOccupied = occupied[seats[i].ID]
	}
	return seats, nil
}

// OccupancyStats summarizes how full a showtime is. TotalSeats is the
// standard auditorium size.
type OccupancyStats struct {
	TotalSeats          int `json:"total_seats"`
	OccupiedSeats       int `json:"occupied_seats"`
	AvailableSeats      int `json:"available_seats"`
	OccupancyPercentage int `json:"occupancy_percentage"`
}

// GetShowtimeOccupancyStats counts the active holds of a showtime. Results
// are served from the cache when present.
func (s *ReservationService) GetShowtimeOccupancyStats(ctx context.Context, showtimeID string) (OccupancyStats, error) {
	var stats OccupancyStats
	if s.stats != nil {
		if err := s.stats.Get(ctx, showtimeID, &stats); err == nil {
			return stats, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.Warn("occupancy cache read failed", zap.Error(err))
		}
	}
	n, err := s.reservations.CountActiveByShowtime(ctx, showtimeID)
	if err != nil {
		return OccupancyStats{}, err
	}
	stats = OccupancyStats{
		TotalSeats:          catalog.TotalSeats,
		OccupiedSeats:       n,
		AvailableSeats:      catalog.TotalSeats - n,
		OccupancyPercentage: int(math.Round(100 * float64(n) / float64(catalog.TotalSeats))),
	}
	if s.stats != nil {
		if err := s.stats.Set(ctx, showtimeID, stats); err != nil {
			logger.Warn("occupancy cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// CleanupMovieReservations deletes every reservation and ticket referencing
// a movie. Used when a movie is withdrawn from the catalog.
func (s *ReservationService) CleanupMovieReservations(ctx context.Context, movieID string) error {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := s.reservations.DeleteByMovieTx(ctx, tx, movieID); err != nil {
		return err
	}
	if _, err := s.tickets.DeleteByMovieTx(ctx, tx, movieID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *ReservationService) invalidateStats(ctx context.Context, showtimeID string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx, showtimeID); err != nil {
		logger.Warn("occupancy cache invalidate failed",
			zap.String("showtime_id", showtimeID), zap.Error(err))
	}
}

// dedupe removes repeated labels while preserving selection order.
func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func reservationIDs(recs []*model.SeatReservation) []uint64 {
	ids := make([]uint64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}
