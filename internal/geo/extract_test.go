package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStationsInBasin(t *testing.T) {
	basins, err := LoadBasins(writeFile(t, "b.geojson", basinGeoJSON), "Station_ID")
	require.NoError(t, err)

	t.Run("no buffer", func(t *testing.T) {
		out, err := ExtractStationsInBasin(testStations(), basins, "05BB001", 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "inside", out[0].ID)
		assert.Equal(t, "05BB001", out[0].Basin)
	})

	t.Run("buffer reaches nearby station", func(t *testing.T) {
		out, err := ExtractStationsInBasin(testStations(), basins, "05BB001", 10)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "near", out[1].ID)
	})

	t.Run("buffer too small", func(t *testing.T) {
		out, err := ExtractStationsInBasin(testStations(), basins, "05BB001", 5)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("unknown basin", func(t *testing.T) {
		_, err := ExtractStationsInBasin(testStations(), basins, "nope", 0)
		require.ErrorIs(t, err, ErrBasinNotFound)
	})
}

func TestDistanceToBoundaryKm(t *testing.T) {
	basins, err := LoadBasins(writeFile(t, "b.geojson", basinGeoJSON), "Station_ID")
	require.NoError(t, err)

	// 0.1 degrees of longitude east of the -115 meridian edge at 51.5N.
	d := DistanceToBoundaryKm(basins[0].Geometry, -114.9, 51.5)
	assert.InDelta(t, 6.92, d, 0.05)
}

func TestSpatialJoin(t *testing.T) {
	basins, err := LoadBasins(writeFile(t, "b.geojson", basinGeoJSON), "Station_ID")
	require.NoError(t, err)

	out := SpatialJoin(testStations(), basins)
	require.Len(t, out, 2)
	assert.Equal(t, "inside", out[0].ID)
	assert.Equal(t, "05BB001", out[0].Basin)
	assert.Equal(t, "elbow", out[1].ID)
	assert.Equal(t, "7", out[1].Basin)
}
