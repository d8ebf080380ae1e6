package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dquispe/cineticket/internal/model"
	"github.com/dquispe/cineticket/internal/queue"
	"github.com/dquispe/cineticket/internal/repository"
	"github.com/dquispe/cineticket/internal/txn"
)

// fakeTx records whether the transaction ended in commit or rollback.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeTxManager struct {
	last *fakeTx
}

func (m *fakeTxManager) Begin(ctx context.Context) (txn.Tx, error) {
	m.last = &fakeTx{}
	return m.last, nil
}

// memStore is an in-memory stand-in for both repositories, close enough to
// the SQL behavior to exercise the workflow.
type memStore struct {
	nextResID    uint64
	nextTicketID uint64
	reservations map[uint64]*model.SeatReservation
	tickets      map[uint64]*model.TicketPurchase
	now          func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		reservations: make(map[uint64]*model.SeatReservation),
		tickets:      make(map[uint64]*model.TicketPurchase),
		now:          now,
	}
}

func (m *memStore) CreateBatchTx(ctx context.Context, tx txn.Tx, recs []*model.SeatReservation) error {
	for _, r := range recs {
		for _, have := range m.reservations {
			if have.ShowtimeID == r.ShowtimeID && have.SeatLabel == r.SeatLabel {
				return repository.ErrSeatUnavailable
			}
		}
		m.nextResID++
		r.ID = m.nextResID
		cp := *r
		m.reservations[r.ID] = &cp
	}
	return nil
}

func (m *memStore) LinkTicketTx(ctx context.Context, tx txn.Tx, ids []uint64, ticketID uint64) error {
	for _, id := range ids {
		m.reservations[id].TicketID = &ticketID
	}
	return nil
}

func (m *memStore) MarkPurchasedTx(ctx context.Context, tx txn.Tx, ticketID uint64) (int64, error) {
	var n int64
	for _, r := range m.reservations {
		if r.TicketID != nil && *r.TicketID == ticketID && r.Status == model.ReservationStatusReserved {
			r.Status = model.ReservationStatusPurchased
			r.ExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteByTicketTx(ctx context.Context, tx txn.Tx, ticketID uint64) (int64, error) {
	var n int64
	for id, r := range m.reservations {
		if r.TicketID != nil && *r.TicketID == ticketID {
			delete(m.reservations, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) SweepExpiredForShowtimeTx(ctx context.Context, tx txn.Tx, showtimeID string) (int64, error) {
	now := m.now()
	var n int64
	for id, r := range m.reservations {
		if r.ShowtimeID == showtimeID && r.Status == model.ReservationStatusReserved &&
			r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			delete(m.reservations, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ActiveSeatLabelsTx(ctx context.Context, tx txn.Tx, showtimeID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, r := range m.reservations {
		if r.ShowtimeID == showtimeID && r.Active(m.now()) {
			out[r.SeatLabel] = true
		}
	}
	return out, nil
}

func (m *memStore) ListActiveByShowtime(ctx context.Context, showtimeID string) ([]model.SeatReservation, error) {
	var out []model.SeatReservation
	for _, r := range m.reservations {
		if r.ShowtimeID == showtimeID && r.Active(m.now()) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) CountActiveByShowtime(ctx context.Context, showtimeID string) (int, error) {
	list, _ := m.ListActiveByShowtime(ctx, showtimeID)
	return len(list), nil
}

func (m *memStore) DeleteByMovieTx(ctx context.Context, tx txn.Tx, movieID string) (int64, error) {
	var n int64
	for id, r := range m.reservations {
		if r.MovieID == movieID {
			delete(m.reservations, id)
			n++
		}
	}
	for id, t := range m.tickets {
		if t.MovieID == movieID {
			delete(m.tickets, id)
		}
	}
	return n, nil
}

func (m *memStore) CreateTx(ctx context.Context, tx txn.Tx, t *model.TicketPurchase) error {
	m.nextTicketID++
	t.ID = m.nextTicketID
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memStore) GetForUpdateTx(ctx context.Context, tx txn.Tx, ticketID, userID uint64) (*model.TicketPurchase, error) {
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	if t.UserID != userID {
		return nil, repository.ErrForbidden
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.TicketPurchase, error) {
	for _, t := range m.tickets {
		if t.UserID == userID && t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (m *memStore) GetByIDForUser(ctx context.Context, ticketID, userID uint64) (*model.TicketPurchase, error) {
	return m.GetForUpdateTx(ctx, nil, ticketID, userID)
}

func (m *memStore) ListByUser(ctx context.Context, userID uint64) ([]model.TicketPurchase, error) {
	var out []model.TicketPurchase
	for _, t := range m.tickets {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatusTx(ctx context.Context, tx txn.Tx, ticketID uint64, from, to string) error {
	t, ok := m.tickets[ticketID]
	if !ok || t.Status != from {
		return repository.ErrTicketNotPending
	}
	t.Status = to
	return nil
}

func (m *memStore) ExpireOldPending(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, t := range m.tickets {
		if t.Status == model.TicketStatusPending && t.PurchaseDate.Before(cutoff) {
			t.Status = model.TicketStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteExpired(ctx context.Context) (int64, []string, error) {
	now := m.now()
	var n int64
	touched := make(map[string]struct{})
	for id, r := range m.reservations {
		if r.Status == model.ReservationStatusReserved && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			touched[r.ShowtimeID] = struct{}{}
			delete(m.reservations, id)
			n++
		}
	}
	showtimes := make([]string, 0, len(touched))
	for id := range touched {
		showtimes = append(showtimes, id)
	}
	return n, showtimes, nil
}

type fixture struct {
	svc   *ReservationService
	store *memStore
	txm   *fakeTxManager
	clock *time.Time
	subs  *[]queue.TicketConfirmedEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)
	clock := &start
	now := func() time.Time { return *clock }
	store := newMemStore(now)
	txm := &fakeTxManager{}
	var events []queue.TicketConfirmedEvent
	publish := func(ctx context.Context, ev queue.TicketConfirmedEvent) error {
		events = append(events, ev)
		return nil
	}
	svc := NewReservationService(txm, store, store, nil, publish, HoldTTL)
	svc.now = now
	return &fixture{svc: svc, store: store, txm: txm, clock: clock, subs: &events}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func createInput(seats ...string) CreateReservationInput {
	return CreateReservationInput{
		UserID:           7,
		MovieID:          "dune-part-three",
		ShowtimeID:       "st-2026-08-29-1900",
		CinemaID:         "cp-san-miguel",
		SeatLabels:       seats,
		TotalAmountCents: 4500,
	}
}

func TestCreateReservationHoldsSeatsAndOpensPendingTicket(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("B5", "B6"))
	require.NoError(t, err)

	assert.Equal(t, model.TicketStatusPending, ticket.Status)
	assert.Equal(t, []string{"B5", "B6"}, ticket.Seats)
	assert.Len(t, ticket.ReservationIDs, 2)
	assert.True(t, f.txm.last.committed)

	for _, id := range ticket.ReservationIDs {
		r := f.store.reservations[id]
		require.NotNil(t, r)
		assert.Equal(t, model.ReservationStatusReserved, r.Status)
		require.NotNil(t, r.ExpiresAt)
		assert.Equal(t, f.clock.Add(HoldTTL), *r.ExpiresAt)
		require.NotNil(t, r.TicketID)
		assert.Equal(t, ticket.ID, *r.TicketID)
	}
}

func TestCreateReservationRejectsNoSeats(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), createInput())
	assert.ErrorIs(t, err, ErrNoSeats)

	_, err = f.svc.CreateReservation(context.Background(), createInput("  ", ""))
	assert.ErrorIs(t, err, ErrNoSeats)
}

func TestCreateReservationRejectsUnknownSeat(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), createInput("Z99"))
	assert.ErrorIs(t, err, ErrUnknownSeat)
}

func TestCreateReservationConflictRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), createInput("B5"))
	require.NoError(t, err)

	in := createInput("B5", "B6")
	in.UserID = 8
	_, err = f.svc.CreateReservation(context.Background(), in)
	require.ErrorIs(t, err, repository.ErrSeatUnavailable)
	assert.Contains(t, err.Error(), "B5")
	assert.True(t, f.txm.last.rolledBack)

	// B6 must not have been held by the failed attempt.
	taken, _ := f.store.ActiveSeatLabelsTx(context.Background(), nil, in.ShowtimeID)
	assert.False(t, taken["B6"])
}

func TestCreateReservationReusesSeatAfterHoldExpires(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.CreateReservation(context.Background(), createInput("B5"))
	require.NoError(t, err)

	f.advance(HoldTTL + time.Minute)

	in := createInput("B5")
	in.UserID = 8
	second, err := f.svc.CreateReservation(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The lapsed hold was swept inside the same transaction.
	for _, id := range first.ReservationIDs {
		assert.Nil(t, f.store.reservations[id])
	}
}

func TestCreateReservationIdempotencyKeyReturnsExistingTicket(t *testing.T) {
	f := newFixture(t)

	in := createInput("C1")
	in.IdempotencyKey = "9f3a"
	first, err := f.svc.CreateReservation(context.Background(), in)
	require.NoError(t, err)

	again, err := f.svc.CreateReservation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.store.tickets, 1)
}

// racingTicketStore simulates a concurrent retry that committed between the
// idempotency lookup and the ticket insert: the first lookup misses, the
// insert hits the unique key, and the second lookup finds the stored
// ticket.
type racingTicketStore struct {
	*memStore
	misses   int
	existing *model.TicketPurchase
}

func (s *racingTicketStore) GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.TicketPurchase, error) {
	if s.misses > 0 {
		s.misses--
		return nil, repository.ErrTicketNotFound
	}
	return s.existing, nil
}

func (s *racingTicketStore) CreateTx(ctx context.Context, tx txn.Tx, t *model.TicketPurchase) error {
	return repository.ErrDuplicateTicket
}

func TestCreateReservationConcurrentRetryReturnsStoredTicket(t *testing.T) {
	f := newFixture(t)

	existing := &model.TicketPurchase{
		ID:             41,
		UserID:         7,
		Seats:          []string{"C1"},
		Status:         model.TicketStatusPending,
		IdempotencyKey: "9f3a",
	}
	tickets := &racingTicketStore{memStore: f.store, misses: 1, existing: existing}
	svc := NewReservationService(f.txm, f.store, tickets, nil, nil, HoldTTL)

	in := createInput("C1")
	in.IdempotencyKey = "9f3a"
	got, err := svc.CreateReservation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	// The losing attempt's holds were rolled back.
	assert.True(t, f.txm.last.rolledBack)
}

func TestConfirmReservation(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("D4"))
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmReservation(context.Background(), 7, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusConfirmed, confirmed.Status)
	assert.Equal(t, model.TicketStatusConfirmed, f.store.tickets[ticket.ID].Status)

	r := f.store.reservations[ticket.ReservationIDs[0]]
	assert.Equal(t, model.ReservationStatusPurchased, r.Status)
	assert.Nil(t, r.ExpiresAt)

	require.Len(t, *f.subs, 1)
	assert.Equal(t, ticket.ID, (*f.subs)[0].TicketID)
}

func TestConfirmReservationRejectsTicketWithLapsedHolds(t *testing.T) {
	f := newFixture(t)

	stale, err := f.svc.CreateReservation(context.Background(), createInput("A1"))
	require.NoError(t, err)

	// The hold lapses and another buyer takes the seat, sweeping the
	// stale hold in the process.
	f.advance(HoldTTL + time.Minute)
	in := createInput("A1")
	in.UserID = 8
	fresh, err := f.svc.CreateReservation(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.ConfirmReservation(context.Background(), 8, fresh.ID)
	require.NoError(t, err)

	// The original buyer's confirm must not steal the seat back.
	_, err = f.svc.ConfirmReservation(context.Background(), 7, stale.ID)
	require.ErrorIs(t, err, repository.ErrSeatUnavailable)
	assert.True(t, f.txm.last.rolledBack)
	assert.Equal(t, model.TicketStatusPending, f.store.tickets[stale.ID].Status)

	winner := f.store.reservations[fresh.ReservationIDs[0]]
	require.NotNil(t, winner)
	assert.Equal(t, uint64(8), winner.UserID)
	assert.Equal(t, model.ReservationStatusPurchased, winner.Status)
}

func TestConfirmReservationRejectsOtherUser(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("D4"))
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(context.Background(), 99, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, model.TicketStatusPending, f.store.tickets[ticket.ID].Status)
}

func TestConfirmReservationRejectsSettledTicket(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("D4"))
	require.NoError(t, err)
	_, err = f.svc.ConfirmReservation(context.Background(), 7, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(context.Background(), 7, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrTicketNotPending)
	assert.Len(t, *f.subs, 1)
}

func TestCancelReservationReleasesSeats(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("E7", "E8"))
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReservation(context.Background(), 7, ticket.ID))
	assert.Equal(t, model.TicketStatusCancelled, f.store.tickets[ticket.ID].Status)

	in := createInput("E7")
	in.UserID = 8
	_, err = f.svc.CreateReservation(context.Background(), in)
	assert.NoError(t, err)
}

func TestCompletePurchaseApproved(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("F1"))
	require.NoError(t, err)

	got, err := f.svc.CompletePurchase(context.Background(), &SimulatedGateway{}, 7, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusConfirmed, got.Status)
}

func TestCompletePurchaseDeclinedCancels(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("F1"))
	require.NoError(t, err)

	gw := &SimulatedGateway{Decline: func(uint32) error { return errors.New("insufficient funds") }}
	_, err = f.svc.CompletePurchase(context.Background(), gw, 7, ticket.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment declined")

	assert.Equal(t, model.TicketStatusCancelled, f.store.tickets[ticket.ID].Status)
	taken, _ := f.store.ActiveSeatLabelsTx(context.Background(), nil, "st-2026-08-29-1900")
	assert.False(t, taken["F1"])
}

func TestGetSeatsByCinemaAndShowtimeMarksOccupied(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), createInput("A1"))
	require.NoError(t, err)

	seats, err := f.svc.GetSeatsByCinemaAndShowtime(context.Background(), "cp-san-miguel", "st-2026-08-29-1900")
	require.NoError(t, err)
	require.Len(t, seats, 120)

	byID := make(map[string]model.Seat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	assert.True(t, byID["A1"].IsOccupied)
	assert.False(t, byID["A2"].IsOccupied)
}

func TestGetShowtimeOccupancyStats(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), createInput("A1", "A2", "A3"))
	require.NoError(t, err)

	stats, err := f.svc.GetShowtimeOccupancyStats(context.Background(), "st-2026-08-29-1900")
	require.NoError(t, err)
	assert.Equal(t, OccupancyStats{
		TotalSeats:          120,
		OccupiedSeats:       3,
		AvailableSeats:      117,
		OccupancyPercentage: 3,
	}, stats)
}

func TestCleanupMovieReservations(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateReservation(context.Background(), createInput("A1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.CleanupMovieReservations(context.Background(), "dune-part-three"))
	assert.Empty(t, f.store.reservations)
	assert.Nil(t, f.store.tickets[ticket.ID])
}
