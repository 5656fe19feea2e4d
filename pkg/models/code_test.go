package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		code        string
		correctness int
		difficulty  int
		clamped     bool
	}{
		{"9505", 95, 5, false},
		{"0000", 0, 0, false},
		{"1010", 10, 10, false},
		{"7799", 77, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			p, err := ParseCode(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.correctness, p.Correctness)
			assert.Equal(t, tt.difficulty, p.Difficulty)
			assert.Equal(t, tt.clamped, p.Clamped)
		})
	}
}

func TestParseCode_Rejects(t *testing.T) {
	for _, code := range []string{"950", "95050", "", "95a5", "-950", "９５０５"} {
		_, err := ParseCode(code)
		require.ErrorIs(t, err, ErrValidation, code)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "code", verr.Field)
	}
}

func TestDailyRollup_Successful(t *testing.T) {
	assert.True(t, DailyRollup{}.Successful())
	assert.True(t, DailyRollup{CardsDue: 5, CardsStudied: 5}.Successful())
	assert.True(t, DailyRollup{CardsDue: 5, CardsStudied: 8}.Successful())
	assert.False(t, DailyRollup{CardsDue: 5, CardsStudied: 4}.Successful())
}

func TestDate(t *testing.T) {
	d := MustParseDate("2024-02-28")
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, 2, d.AddDays(2).DaysSince(d))
	assert.Equal(t, -7, d.AddDays(-7).DaysSince(d))

	var scanned Date
	require.NoError(t, scanned.Scan("2024-02-28 13:45:00"))
	assert.True(t, scanned.Equal(d))

	var ts Timestamp
	require.NoError(t, ts.Scan([]byte("2024-02-28 13:45:00")))
	assert.Equal(t, "2024-02-28", ts.Day().String())
}
