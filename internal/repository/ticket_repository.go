package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dquispe/cineticket/internal/database"
	"github.com/dquispe/cineticket/internal/model"
	"github.com/dquispe/cineticket/internal/txn"
)

// TicketRepo provides access to the tickets and ticket_seats tables. The
// ticket_seats position column preserves the buyer's selection order, which
// is also the order seats are returned in.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateTx inserts a pending ticket together with its ordered seat rows.
// The generated ID is populated on the passed record. ReservationIDs must
// line up with Seats index-for-index.
func (r *TicketRepo) CreateTx(ctx context.Context, tx txn.Tx, t *model.TicketPurchase) error {
	stx := database.Unwrap(tx)
	if stx == nil {
		return errors.New("ticket repo: foreign transaction")
	}
	if len(t.Seats) != len(t.ReservationIDs) {
		return errors.New("ticket repo: seats and reservation ids out of step")
	}
	const q = `INSERT INTO tickets
	           (user_id, movie_id, showtime_id, cinema_id, total_amount_cents, purchase_date, status, idempotency_key)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := stx.ExecContext(ctx, q,
		t.UserID, t.MovieID, t.ShowtimeID, t.CinemaID,
		t.TotalAmountCents, t.PurchaseDate.UTC(), t.Status, nullString(t.IdempotencyKey))
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDupEntry {
			return ErrDuplicateTicket
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)

	const seatQ = `INSERT INTO ticket_seats (ticket_id, position, seat_label, reservation_id) VALUES (?, ?, ?, ?)`
	for i, label := range t.Seats {
		if _, err := stx.ExecContext(ctx, seatQ, t.ID, i, label, t.ReservationIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

const ticketCols = `id, user_id, movie_id, showtime_id, cinema_id, total_amount_cents, purchase_date, status, idempotency_key`

func scanTicket(sc interface{ Scan(...any) error }) (model.TicketPurchase, error) {
	var t model.TicketPurchase
	var key sql.NullString
	err := sc.Scan(&t.ID, &t.UserID, &t.MovieID, &t.ShowtimeID, &t.CinemaID,
		&t.TotalAmountCents, &t.PurchaseDate, &t.Status, &key)
	if err != nil {
		return model.TicketPurchase{}, err
	}
	t.Seats = []string{}
	t.ReservationIDs = []uint64{}
	if key.Valid {
		t.IdempotencyKey = key.String
	}
	return t, nil
}

// GetForUpdateTx loads a ticket inside a transaction with a row lock,
// verifying ownership. Returns ErrTicketNotFound when the ID is unknown and
// ErrForbidden when the ticket belongs to another user.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx txn.Tx, ticketID, userID uint64) (*model.TicketPurchase, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return nil, errors.New("ticket repo: foreign transaction")
	}
	q := `SELECT ` + ticketCols + ` FROM tickets WHERE id = ? FOR UPDATE`
	t, err := scanTicket(stx.QueryRowContext(ctx, q, ticketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	if err := r.loadSeatsTx(ctx, stx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepo) loadSeatsTx(ctx context.Context, stx *sql.Tx, t *model.TicketPurchase) error {
	const q = `SELECT seat_label, reservation_id FROM ticket_seats WHERE ticket_id = ? ORDER BY position`
	rows, err := stx.QueryContext(ctx, q, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var rid uint64
		if err := rows.Scan(&label, &rid); err != nil {
			return err
		}
		t.Seats = append(t.Seats, label)
		t.ReservationIDs = append(t.ReservationIDs, rid)
	}
	return rows.Err()
}

// GetByIdempotencyKey returns the ticket a user previously created with the
// given key, or ErrTicketNotFound. It makes retried creates safe: the
// caller returns the existing ticket instead of holding the seats twice.
func (r *TicketRepo) GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.TicketPurchase, error) {
	q := `SELECT ` + ticketCols + ` FROM tickets WHERE user_id = ? AND idempotency_key = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, userID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if err := r.loadSeats(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByIDForUser returns one ticket with its seats, enforcing ownership.
func (r *TicketRepo) GetByIDForUser(ctx context.Context, ticketID, userID uint64) (*model.TicketPurchase, error) {
	q := `SELECT ` + ticketCols + ` FROM tickets WHERE id = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, ticketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	if err := r.loadSeats(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepo) loadSeats(ctx context.Context, t *model.TicketPurchase) error {
	const q = `SELECT seat_label, reservation_id FROM ticket_seats WHERE ticket_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var rid uint64
		if err := rows.Scan(&label, &rid); err != nil {
			return err
		}
		t.Seats = append(t.Seats, label)
		t.ReservationIDs = append(t.ReservationIDs, rid)
	}
	return rows.Err()
}

// ListByUser returns all tickets of a user, newest purchase first, with
// seats populated in selection order. Seats for the whole page are loaded
// in a single second query.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.TicketPurchase, error) {
	q := `SELECT ` + ticketCols + ` FROM tickets WHERE user_id = ? ORDER BY purchase_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]model.TicketPurchase, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(tickets)
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return tickets, nil
	}
	ids := make([]any, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	seatQ := `SELECT ticket_id, seat_label, reservation_id FROM ticket_seats
	          WHERE ticket_id IN (` + placeholders(len(ids)) + `) ORDER BY ticket_id, position`
	srows, err := r.db.QueryContext(ctx, seatQ, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var tid, rid uint64
		var label string
		if err := srows.Scan(&tid, &label, &rid); err != nil {
			return nil, err
		}
		if i, ok := index[tid]; ok {
			tickets[i].Seats = append(tickets[i].Seats, label)
			tickets[i].ReservationIDs = append(tickets[i].ReservationIDs, rid)
		}
	}
	return tickets, srows.Err()
}

// UpdateStatusTx moves a ticket from one status to another. Zero rows
// affected means the ticket was not in the expected source status, which
// surfaces as ErrTicketNotPending.
func (r *TicketRepo) UpdateStatusTx(ctx context.Context, tx txn.Tx, ticketID uint64, from, to string) error {
	stx := database.Unwrap(tx)
	if stx == nil {
		return errors.New("ticket repo: foreign transaction")
	}
	res, err := stx.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id = ? AND status = ?`, to, ticketID, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketNotPending
	}
	return nil
}

// ExpireOldPending marks pending tickets whose purchase_date is older than
// the cutoff as expired. Their reservations are left to the expired-hold
// sweep.
func (r *TicketRepo) ExpireOldPending(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE tickets SET status = 'expired' WHERE status = 'pending' AND purchase_date < ?`
	res, err := r.db.ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByMovieTx removes every ticket referencing a movie along with its
// seat rows (ticket_seats cascades on the foreign key).
func (r *TicketRepo) DeleteByMovieTx(ctx context.Context, tx txn.Tx, movieID string) (int64, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return 0, errors.New("ticket repo: foreign transaction")
	}
	res, err := stx.ExecContext(ctx, `DELETE FROM tickets WHERE movie_id = ?`, movieID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
