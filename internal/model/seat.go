package model

// Seat is the ephemeral view of one auditorium seat for a showtime. It is
// never persisted: the catalog generates the layout and the handler merges
// in the current reservation state per request.
type Seat struct {
	ID           string `json:"id"`   // "{row}{number}", e.g. "C7"
	Row          string `json:"row"`  // row letter
	Number       int    `json:"number"`
	IsOccupied   bool   `json:"is_occupied"`
	IsWheelchair bool   `json:"is_wheelchair"`
	IsSelected   bool   `json:"is_selected"` // client-side selection flag, always false server-side
}
