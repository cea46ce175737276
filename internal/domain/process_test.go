package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSeries(t *testing.T) {
	fixedTime := time.Date(2024, 4, 26, 12, 30, 45, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	defer SetClock(nil)

	params := ProcessParams{
		IndexParams:     IndexParams{Season: januaryWindow, MinCoverage: 1, MinSeasons: 5},
		MinAvailability: 80,
		MaxGapDays:      1,
	}

	t.Run("fills gaps and computes seasons", func(t *testing.T) {
		s := yearlySeries("st-1", 2001, []float64{3, 1, 5, 2, 4, 6})
		s.Values[1] = math.NaN() // 2 Jan 2001, filled from neighbours

		result, err := ProcessSeries(s, params)
		require.NoError(t, err)

		assert.Equal(t, "st-1", result.Station.ID)
		assert.Equal(t, 1, result.GapsFilled)
		assert.InDelta(t, 94.44, result.Availability, 0.01)
		assert.Len(t, result.Seasons, 6)
		assert.Equal(t, fixedTime, result.ProcessedAt)
		assert.True(t, math.IsNaN(s.Values[1]), "input series must not be modified")
	})

	t.Run("low availability rejected", func(t *testing.T) {
		s := yearlySeries("st-2", 2001, []float64{3, 1, 5, 2, 4, 6})
		for i := 0; i < 6; i++ {
			s.Values[i] = math.NaN()
		}

		_, err := ProcessSeries(s, params)
		require.ErrorIs(t, err, ErrInsufficientData)
		assert.Contains(t, err.Error(), "st-2")
	})

	t.Run("empty series rejected", func(t *testing.T) {
		_, err := ProcessSeries(Series{Station: Station{ID: "st-3"}}, ProcessParams{})
		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("too few seasons", func(t *testing.T) {
		_, err := ProcessSeries(yearlySeries("st-4", 2001, []float64{1, 2}), params)
		require.ErrorIs(t, err, ErrInsufficientSeasons)
	})
}
