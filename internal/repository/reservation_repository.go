package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dquispe/cineticket/internal/database"
	"github.com/dquispe/cineticket/internal/model"
	"github.com/dquispe/cineticket/internal/txn"
)

// mysqlDupEntry is the server error code raised when an INSERT violates a
// unique key.
const mysqlDupEntry = 1062

// ReservationRepo provides access to the seat_reservations table. All
// timestamps are stored and compared in UTC. Methods with a Tx suffix run
// inside a caller-provided transaction and never commit or roll back
// themselves.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `id, seat_label, showtime_id, movie_id, cinema_id, user_id, ticket_id, status, reserved_at, expires_at`

// scanReservation reads one seat_reservations row from the given scanner.
func scanReservation(sc interface{ Scan(...any) error }) (model.SeatReservation, error) {
	var r model.SeatReservation
	var ticketID sql.NullInt64
	var expiresAt sql.NullTime
	err := sc.Scan(&r.ID, &r.SeatLabel, &r.ShowtimeID, &r.MovieID, &r.CinemaID,
		&r.UserID, &ticketID, &r.Status, &r.ReservedAt, &expiresAt)
	if err != nil {
		return model.SeatReservation{}, err
	}
	if ticketID.Valid {
		tid := uint64(ticketID.Int64)
		r.TicketID = &tid
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		r.ExpiresAt = &t
	}
	return r, nil
}

// CreateBatchTx inserts one reserved row per seat and populates the
// generated IDs on the passed records. A duplicate (showtime, seat) pair
// maps to ErrSeatUnavailable; the unique key is the real guard against two
// concurrent purchases of the same seat, the caller's availability check
// only produces a friendlier error.
func (r *ReservationRepo) CreateBatchTx(ctx context.Context, tx txn.Tx, recs []*model.SeatReservation) error {
	stx := database.Unwrap(tx)
	if stx == nil {
		return errors.New("reservation repo: foreign transaction")
	}
	const q = `INSERT INTO seat_reservations
	           (seat_label, showtime_id, movie_id, cinema_id, user_id, status, reserved_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, rec := range recs {
		res, err := stx.ExecContext(ctx, q,
			rec.SeatLabel, rec.ShowtimeID, rec.MovieID, rec.CinemaID,
			rec.UserID, rec.Status, rec.ReservedAt.UTC(), nullTime(rec.ExpiresAt))
		if err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == mysqlDupEntry {
				return ErrSeatUnavailable
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rec.ID = uint64(id)
	}
	return nil
}

// LinkTicketTx stamps the ticket ID onto the given reservation rows.
func (r *ReservationRepo) LinkTicketTx(ctx context.Context, tx txn.Tx, reservationIDs []uint64, ticketID uint64) error {
	if len(reservationIDs) == 0 {
		return nil
	}
	stx := database.Unwrap(tx)
	if stx == nil {
		return errors.New("reservation repo: foreign transaction")
	}
	q := `UPDATE seat_reservations SET ticket_id = ? WHERE id IN (` + placeholders(len(reservationIDs)) + `)`
	args := make([]any, 0, len(reservationIDs)+1)
	args = append(args, ticketID)
	for _, id := range reservationIDs {
		args = append(args, id)
	}
	_, err := stx.ExecContext(ctx, q, args...)
	return err
}

// MarkPurchasedTx flips all reserved rows of a ticket to purchased and
// clears their expiry. Returns the number of rows updated.
func (r *ReservationRepo) MarkPurchasedTx(ctx context.Context, tx txn.Tx, ticketID uint64) (int64, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return 0, errors.New("reservation repo: foreign transaction")
	}
	const q = `UPDATE seat_reservations
	           SET status = 'purchased', expires_at = NULL
	           WHERE ticket_id = ? AND status = 'reserved'`
	res, err := stx.ExecContext(ctx, q, ticketID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByTicketTx releases every hold created for a ticket.
func (r *ReservationRepo) DeleteByTicketTx(ctx context.Context, tx txn.Tx, ticketID uint64) (int64, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return 0, errors.New("reservation repo: foreign transaction")
	}
	res, err := stx.ExecContext(ctx, `DELETE FROM seat_reservations WHERE ticket_id = ?`, ticketID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepExpiredForShowtimeTx deletes lapsed reserved holds of one showtime.
// It runs inside the reservation transaction so a new purchase sees the
// seats it frees.
func (r *ReservationRepo) SweepExpiredForShowtimeTx(ctx context.Context, tx txn.Tx, showtimeID string) (int64, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return 0, errors.New("reservation repo: foreign transaction")
	}
	const q = `DELETE FROM seat_reservations
	           WHERE showtime_id = ? AND status = 'reserved' AND expires_at <= UTC_TIMESTAMP()`
	res, err := stx.ExecContext(ctx, q, showtimeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired is the global sweep used by the cleanup service: it removes
// every reserved hold whose deadline has passed and reports the showtimes
// it touched so their cached occupancy can be dropped. purchased rows carry
// no expiry and are never touched. A hold expiring between the select and
// the delete is simply picked up by the next sweep.
func (r *ReservationRepo) DeleteExpired(ctx context.Context) (int64, []string, error) {
	const cond = `status = 'reserved' AND expires_at IS NOT NULL AND expires_at <= UTC_TIMESTAMP()`

	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT showtime_id FROM seat_reservations WHERE `+cond)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var showtimes []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, nil, err
		}
		showtimes = append(showtimes, id)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_reservations WHERE `+cond)
	if err != nil {
		return 0, nil, err
	}
	n, err := res.RowsAffected()
	return n, showtimes, err
}

// ListActiveByShowtime returns the holds that still block seats for a
// showtime: purchased rows plus reserved rows that have not expired.
func (r *ReservationRepo) ListActiveByShowtime(ctx context.Context, showtimeID string) ([]model.SeatReservation, error) {
	q := `SELECT ` + reservationCols + ` FROM seat_reservations
	      WHERE showtime_id = ?
	        AND (status = 'purchased' OR (status = 'reserved' AND expires_at > UTC_TIMESTAMP()))
	      ORDER BY seat_label`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SeatReservation, 0)
	for rows.Next() {
		rec, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActiveSeatLabelsTx returns the labels currently blocked for a showtime,
// locking the matching rows so a concurrent purchase of the same seats
// serializes behind this transaction.
func (r *ReservationRepo) ActiveSeatLabelsTx(ctx context.Context, tx txn.Tx, showtimeID string) (map[string]bool, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return nil, errors.New("reservation repo: foreign transaction")
	}
	const q = `SELECT seat_label FROM seat_reservations
	           WHERE showtime_id = ?
	             AND (status = 'purchased' OR (status = 'reserved' AND expires_at > UTC_TIMESTAMP()))
	           FOR UPDATE`
	rows, err := stx.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	taken := make(map[string]bool)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		taken[label] = true
	}
	return taken, rows.Err()
}

// CountActiveByShowtime counts the holds that still block seats.
func (r *ReservationRepo) CountActiveByShowtime(ctx context.Context, showtimeID string) (int, error) {
	const q = `SELECT COUNT(*) FROM seat_reservations
	           WHERE showtime_id = ?
	             AND (status = 'purchased' OR (status = 'reserved' AND expires_at > UTC_TIMESTAMP()))`
	var n int
	if err := r.db.QueryRowContext(ctx, q, showtimeID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteByMovieTx removes every reservation referencing a movie. Used by
// the cascading cleanup when a movie is withdrawn from the catalog.
func (r *ReservationRepo) DeleteByMovieTx(ctx context.Context, tx txn.Tx, movieID string) (int64, error) {
	stx := database.Unwrap(tx)
	if stx == nil {
		return 0, errors.New("reservation repo: foreign transaction")
	}
	res, err := stx.ExecContext(ctx, `DELETE FROM seat_reservations WHERE movie_id = ?`, movieID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// placeholders builds "?, ?, ?" for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// nullTime converts an optional time into its SQL representation.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
