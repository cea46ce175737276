package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecade(t *testing.T) {
	tests := []struct {
		year     int
		expected int
	}{
		{1980, 1980},
		{1987, 1980},
		{1999, 1990},
		{2000, 2000},
		{2023, 2020},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Decade(tt.year), "year %d", tt.year)
	}
	assert.Equal(t, "1980s", DecadeLabel(1980))
}

func TestDroughtFrequencyByDecade(t *testing.T) {
	indices := []SeasonIndex{
		{SeasonYear: 1985, SSWEI: -1.2, Category: CategorySevere},
		{SeasonYear: 1989, SSWEI: 0.2, Category: CategoryNormal},
		{SeasonYear: 1992, SSWEI: -2.3, Category: CategoryExceptional},
		{SeasonYear: 1995, SSWEI: -0.6, Category: CategoryModerate},
		{SeasonYear: 1998, SSWEI: 1.1, Category: CategoryWet},
		{SeasonYear: 1999, SSWEI: 0.3, Category: CategoryNormal},
	}

	summaries := DroughtFrequencyByDecade(indices, nil)
	require.Len(t, summaries, 2)

	s80 := summaries[0]
	assert.Equal(t, 1980, s80.Decade)
	assert.Equal(t, "1980s", s80.Label)
	assert.Equal(t, 2, s80.Seasons)
	assert.Equal(t, 1, s80.DroughtSeasons)
	assert.InDelta(t, 0.5, s80.DroughtFrac, 1e-12)
	assert.InDelta(t, -0.5, s80.MeanSSWEI, 1e-12)
	assert.Equal(t, CategorySevere, s80.WorstCategory)

	s90 := summaries[1]
	assert.Equal(t, 4, s90.Seasons)
	assert.Equal(t, 2, s90.DroughtSeasons)
	assert.Equal(t, CategoryExceptional, s90.WorstCategory)
	assert.InDelta(t, -0.375, s90.MeanSSWEI, 1e-12)

	assert.Empty(t, DroughtFrequencyByDecade(nil, nil))
}

func TestElevationBands(t *testing.T) {
	bands, err := ElevationBands([]float64{1000, 1500, 2000})
	require.NoError(t, err)
	require.Len(t, bands, 4)

	assert.Equal(t, "< 1000 m", bands[0].Label)
	assert.Equal(t, "1000-1500 m", bands[1].Label)
	assert.Equal(t, "1500-2000 m", bands[2].Label)
	assert.Equal(t, ">= 2000 m", bands[3].Label)
	assert.True(t, math.IsInf(bands[0].Lower, -1))
	assert.True(t, math.IsInf(bands[3].Upper, 1))

	assert.Equal(t, 0, BandFor(bands, 500))
	assert.Equal(t, 1, BandFor(bands, 1000))
	assert.Equal(t, 1, BandFor(bands, 1499.9))
	assert.Equal(t, 2, BandFor(bands, 1500))
	assert.Equal(t, 3, BandFor(bands, 3500))
	assert.Equal(t, -1, BandFor(bands, math.NaN()))

	_, err = ElevationBands(nil)
	require.ErrorIs(t, err, ErrInvalidBands)
	_, err = ElevationBands([]float64{1500, 1000})
	require.ErrorIs(t, err, ErrInvalidBands)
}

func TestSummarizeByElevation(t *testing.T) {
	bands, err := ElevationBands([]float64{1000, 2000})
	require.NoError(t, err)

	results := []StationResult{
		{Station: Station{ID: "low", Elevation: 800}, Seasons: []SeasonIndex{{SSWEI: -1, Drought: true}, {SSWEI: 1}}},
		{Station: Station{ID: "mid", Elevation: 1500}, Seasons: []SeasonIndex{{SSWEI: -2, Drought: true}}},
		{Station: Station{ID: "mid2", Elevation: 1800}, Seasons: []SeasonIndex{{SSWEI: 0}}},
	}

	summary := SummarizeByElevation(results, bands)
	require.Len(t, summary, 3)

	assert.Equal(t, 1, summary[0].Stations)
	assert.Equal(t, 2, summary[0].Seasons)
	assert.InDelta(t, 0, summary[0].MeanSSWEI, 1e-12)
	assert.InDelta(t, 0.5, summary[0].DroughtFrac, 1e-12)

	assert.Equal(t, 2, summary[1].Stations)
	assert.InDelta(t, -1, summary[1].MeanSSWEI, 1e-12)

	assert.Equal(t, 0, summary[2].Stations)
	assert.Equal(t, 0.0, summary[2].MeanSSWEI)
}

func TestCategoryCounts(t *testing.T) {
	results := []StationResult{
		{Seasons: []SeasonIndex{{Category: CategorySevere}, {Category: CategoryNormal}}},
		{Seasons: []SeasonIndex{{Category: CategorySevere}}},
	}

	counts := CategoryCounts(results, nil)
	assert.Len(t, counts, 6)
	assert.Equal(t, 2, counts[CategorySevere])
	assert.Equal(t, 1, counts[CategoryNormal])
	assert.Equal(t, 0, counts[CategoryWet])
}
