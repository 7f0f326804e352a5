package deadline

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paris(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func TestReturnDate(t *testing.T) {
	loc := paris(t)
	at := func(d, h, m int) time.Time { return time.Date(2024, time.March, d, h, m, 0, 0, loc) }

	tests := []struct {
		name    string
		absence time.Time
		want    time.Time
	}{
		{name: "monday", absence: at(11, 10, 0), want: at(12, 8, 0)},
		{name: "thursday", absence: at(7, 14, 0), want: at(8, 8, 0)},
		{name: "friday late evening", absence: at(8, 23, 59), want: at(11, 8, 0)},
		{name: "saturday", absence: at(9, 9, 0), want: at(11, 8, 0)},
		{name: "sunday", absence: at(10, 9, 0), want: at(11, 8, 0)},
		{name: "month edge", absence: time.Date(2024, time.May, 31, 16, 0, 0, 0, loc), want: time.Date(2024, time.June, 3, 8, 0, 0, 0, loc)},
		{name: "utc friday evening is saturday in paris", absence: time.Date(2024, time.March, 8, 23, 30, 0, 0, time.UTC), want: at(11, 8, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReturnDate(tt.absence, loc)
			assert.True(t, got.Equal(tt.want), "ReturnDate() = %v; want %v", got, tt.want)
		})
	}
}

func TestAddBusinessDays(t *testing.T) {
	loc := paris(t)
	at := func(d int) time.Time { return time.Date(2024, time.March, d, 8, 0, 0, 0, loc) }

	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{name: "zero days", start: at(11), n: 0, want: at(11)},
		{name: "within the week", start: at(11), n: 2, want: at(13)},
		{name: "over the weekend", start: at(8), n: 2, want: at(12)},
		{name: "from thursday", start: at(14), n: 2, want: at(18)},
		{name: "across dst change", start: time.Date(2024, time.March, 29, 8, 0, 0, 0, loc), n: 2, want: time.Date(2024, time.April, 2, 8, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddBusinessDays(tt.start, tt.n)
			assert.True(t, got.Equal(tt.want), "AddBusinessDays() = %v; want %v", got, tt.want)
		})
	}
}

func TestCompute(t *testing.T) {
	loc := paris(t)

	t.Run("no unjustified absence", func(t *testing.T) {
		res := Compute(nil, time.Now(), loc)
		assert.False(t, res.Applicable)
		assert.False(t, res.IsLate)
		assert.Zero(t, res.Remaining(time.Now()))
	})

	t.Run("friday 23:59", func(t *testing.T) {
		last := time.Date(2024, time.March, 8, 23, 59, 0, 0, loc)
		now := time.Date(2024, time.March, 11, 12, 0, 0, 0, loc)

		res := Compute(&last, now, loc)
		require.True(t, res.Applicable)
		assert.Equal(t, time.Monday, res.ReturnDate.Weekday())
		assert.True(t, res.ReturnDate.Equal(time.Date(2024, time.March, 11, 8, 0, 0, 0, loc)))
		assert.Equal(t, time.Wednesday, res.Deadline.Weekday())
		assert.True(t, res.Deadline.Equal(time.Date(2024, time.March, 13, 8, 0, 0, 0, loc)))
		assert.False(t, res.IsLate)
		assert.Equal(t, 44, res.HoursRemaining(now))
	})

	t.Run("thursday absence is due tuesday", func(t *testing.T) {
		last := time.Date(2024, time.March, 7, 10, 0, 0, 0, loc)
		res := Compute(&last, last, loc)
		assert.True(t, res.Deadline.Equal(time.Date(2024, time.March, 12, 8, 0, 0, 0, loc)))
	})

	t.Run("lateness boundary", func(t *testing.T) {
		last := time.Date(2024, time.March, 8, 23, 59, 0, 0, loc)
		deadline := time.Date(2024, time.March, 13, 8, 0, 0, 0, loc)

		tests := []struct {
			name     string
			now      time.Time
			wantLate bool
		}{
			{name: "one second before", now: deadline.Add(-time.Second)},
			{name: "exactly on deadline", now: deadline},
			{name: "one second after", now: deadline.Add(time.Second), wantLate: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := Compute(&last, tt.now, loc)
				assert.Equal(t, tt.wantLate, res.IsLate)
			})
		}
	})

	t.Run("nil location falls back to utc", func(t *testing.T) {
		last := time.Date(2024, time.March, 11, 10, 0, 0, 0, time.UTC)
		res := Compute(&last, last, nil)
		assert.True(t, res.ReturnDate.Equal(time.Date(2024, time.March, 12, 8, 0, 0, 0, time.UTC)))
	})
}
