// Package catalog generates the deterministic seat layout for a showtime.
// Reservation rows key off the seat identifiers produced here, so the same
// (cinemaID, showtimeID) pair must always yield the same ordered sequence.
package catalog

import (
	"strconv"
	"strings"

	"github.com/dquispe/cineticket/internal/model"
)

const (
	// StandardRows is the default auditorium depth (rows A-J).
	StandardRows = 10
	// ExtendedRows is used by IMAX auditoriums (rows A-L).
	ExtendedRows = 12
	// SeatsPerRow is fixed across all layouts.
	SeatsPerRow = 12

	// TotalSeats is the seat count assumed by the occupancy stats. It
	// matches the standard layout (10 rows of 12).
	TotalSeats = StandardRows * SeatsPerRow
)

// imaxPrefix marks cinema IDs whose auditoriums use the extended layout.
const imaxPrefix = "imax-"

// Generate enumerates the seats for a cinema/showtime in row-major order.
// It is a pure function of its inputs: rows A-J with 12 seats each, or A-L
// for IMAX cinemas. The two outermost positions on each side of the last
// row are wheelchair-designated.
func Generate(cinemaID, showtimeID string) []model.Seat {
	rows := StandardRows
	if strings.HasPrefix(cinemaID, imaxPrefix) {
		rows = ExtendedRows
	}
	seats := make([]model.Seat, 0, rows*SeatsPerRow)
	for r := 0; r < rows; r++ {
		row := string(rune('A' + r))
		last := r == rows-1
		for n := 1; n <= SeatsPerRow; n++ {
			seats = append(seats, model.Seat{
				ID:           RowNumberID(row, n),
				Row:          row,
				Number:       n,
				IsWheelchair: last && (n <= 2 || n > SeatsPerRow-2),
			})
		}
	}
	return seats
}

// RowNumberID builds the canonical seat identifier for a row and number.
func RowNumberID(row string, number int) string {
	return row + strconv.Itoa(number)
}

// Valid reports whether label names a seat in the layout of the given
// cinema. Used to reject reservations for seats that do not exist.
func Valid(cinemaID, showtimeID, label string) bool {
	for _, s := range Generate(cinemaID, showtimeID) {
		if s.ID == label {
			return true
		}
	}
	return false
}
