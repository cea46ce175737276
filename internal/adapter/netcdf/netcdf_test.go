package netcdf

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/geo"
)

func testDataset() *domain.Dataset {
	start := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, 4)
	for i := range times {
		times[i] = start.AddDate(0, 0, i)
	}
	return &domain.Dataset{
		Variable: "snw",
		Units:    "mm",
		Stations: []domain.Station{
			{ID: "05BB803", Name: "Sunshine Village", Lat: 51.08, Lon: -115.78, Elevation: 2230},
			{ID: "05BJ805", Name: "Little Elbow", Lat: 50.77, Lon: -114.99, Elevation: 1850},
		},
		Times: times,
		Values: [][]float64{
			{10, 20, math.NaN(), 40},
			{0, 5, 5, 0},
		},
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swe.nc")
	in := testDataset()
	require.NoError(t, WriteDataset(path, in))

	out, err := LoadDataset(path, "snw")
	require.NoError(t, err)

	assert.Equal(t, "mm", out.Units)
	require.Len(t, out.Stations, 2)
	assert.Equal(t, in.Stations, out.Stations)
	require.Len(t, out.Times, 4)
	for i := range in.Times {
		assert.True(t, in.Times[i].Equal(out.Times[i]), "time %d", i)
	}

	assert.Equal(t, []float64{0, 5, 5, 0}, out.Values[1])
	assert.Equal(t, 10.0, out.Values[0][0])
	assert.True(t, math.IsNaN(out.Values[0][2]), "fill value should read back as NaN")
}

func TestLoadDataset_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swe.nc")
	require.NoError(t, WriteDataset(path, testDataset()))

	_, err := LoadDataset(path, "pr")
	require.ErrorIs(t, err, ErrMissingVariable)

	_, err = LoadDataset(filepath.Join(t.TempDir(), "missing.nc"), "snw")
	require.Error(t, err)
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units  string
		step   time.Duration
		origin time.Time
	}{
		{"days since 1979-01-01", 24 * time.Hour, time.Date(1979, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 1900-01-01 00:00:00", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 2000-1-1", time.Second, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, origin, err := ParseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.step, step)
			assert.True(t, tt.origin.Equal(origin))
		})
	}

	for _, bad := range []string{"", "days", "fortnights since 2000-01-01", "days since yesterday"} {
		_, _, err := ParseTimeUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestGridRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.nc")
	in := geo.NewGrid(500000, 5700000, 30, 3, 2, -9999)
	for i := range in.Values {
		in.Values[i] = float64(1000 + i*10)
	}
	in.Set(1, 2, -9999)
	require.NoError(t, WriteGrid(path, "elevation", in))

	out, err := LoadGrid(path, "elevation")
	require.NoError(t, err)
	assert.Equal(t, in.NX, out.NX)
	assert.Equal(t, in.NY, out.NY)
	assert.InDelta(t, in.X0, out.X0, 1e-6)
	assert.InDelta(t, in.Y0, out.Y0, 1e-6)
	assert.InDelta(t, in.CellSize, out.CellSize, 1e-9)
	assert.Equal(t, in.Values, out.Values)
	assert.False(t, out.Valid(out.At(1, 2)))
}

func TestWriteDataset_Empty(t *testing.T) {
	err := WriteDataset(filepath.Join(t.TempDir(), "empty.nc"), &domain.Dataset{Variable: "snw"})
	require.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestWriteDataset_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swe.nc")
	require.NoError(t, WriteDataset(path, testDataset()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	ff, err := cdf.Open(f)
	require.NoError(t, err)

	assert.Equal(t, []float64{defaultFill}, ff.Header.GetAttribute("snw", "_FillValue"))
	assert.Equal(t, "mm", ff.Header.GetAttribute("snw", "units"))
	assert.Equal(t, []int{2, 4}, ff.Header.Lengths("snw"))

	lats, err := readFloats(ff, "lat")
	require.NoError(t, err)
	assert.Equal(t, []float64{51.08, 50.77}, lats)
}

func TestWriteGrid_NaNNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.nc")
	in := geo.NewGrid(0, 100, 10, 2, 2, math.NaN())
	copy(in.Values, []float64{1, 2, math.NaN(), 4})
	require.NoError(t, WriteGrid(path, "elevation", in))

	out, err := LoadGrid(path, "elevation")
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.At(1, 1))
	assert.False(t, out.Valid(out.At(1, 0)))
}

func TestWriteVariable_LengthMismatch(t *testing.T) {
	h := cdf.NewHeader([]string{"x"}, []int{3})
	h.AddVariable("x", []string{"x"}, []float64{})
	h.Define()

	f, err := os.Create(filepath.Join(t.TempDir(), "x.nc"))
	require.NoError(t, err)
	defer f.Close()
	ff, err := cdf.Create(f, h)
	require.NoError(t, err)

	require.Error(t, writeVariable(ff, "x", []float64{1, 2}))
	require.NoError(t, writeVariable(ff, "x", []float64{1, 2, 3}))
}
