package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	first := Generate("cinema-lima-1", "s1")
	second := Generate("cinema-lima-1", "s1")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestGenerateStandardLayout(t *testing.T) {
	seats := Generate("cinema-lima-1", "s1")

	require.Len(t, seats, TotalSeats)
	assert.Equal(t, "A1", seats[0].ID)
	assert.Equal(t, "A12", seats[SeatsPerRow-1].ID)
	assert.Equal(t, "J12", seats[len(seats)-1].ID)

	// no duplicate identifiers
	seen := make(map[string]bool, len(seats))
	for _, s := range seats {
		assert.False(t, seen[s.ID], "duplicate seat %s", s.ID)
		seen[s.ID] = true
	}
}

func TestGenerateExtendedLayoutForIMAX(t *testing.T) {
	seats := Generate("imax-lima-2", "s9")

	require.Len(t, seats, ExtendedRows*SeatsPerRow)
	assert.Equal(t, "L12", seats[len(seats)-1].ID)
}

func TestWheelchairSeatsOnLastRow(t *testing.T) {
	seats := Generate("cinema-lima-1", "s1")

	var wheelchair []string
	for _, s := range seats {
		if s.IsWheelchair {
			wheelchair = append(wheelchair, s.ID)
		}
	}
	assert.Equal(t, []string{"J1", "J2", "J11", "J12"}, wheelchair)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("cinema-lima-1", "s1", "B5"))
	assert.False(t, Valid("cinema-lima-1", "s1", "K1"), "row K only exists in the extended layout")
	assert.True(t, Valid("imax-lima-2", "s1", "K1"))
	assert.False(t, Valid("cinema-lima-1", "s1", "A13"))
}
