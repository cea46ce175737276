package pipeline_test

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-drought-index/internal/cache"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/mock"
	"github.com/couchcryptid/snow-drought-index/internal/pipeline"
)

func testParams() domain.ProcessParams {
	return domain.ProcessParams{
		IndexParams: domain.IndexParams{
			Season:      domain.DefaultSeason,
			MinCoverage: 0.9,
			MinSeasons:  5,
			Thresholds:  domain.DefaultThresholds(),
		},
		MinAvailability: 80,
		MaxGapDays:      15,
	}
}

func syntheticSeries(t *testing.T, id string, startYear, endYear int) domain.Series {
	t.Helper()
	return mock.Series(id, startYear, endYear, 7)
}

func TestPipeline_WithMockDataset(t *testing.T) {
	opts := mock.DefaultOptions()
	d := mock.Dataset(opts)

	ldr := &mockLoader{}
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(testParams(), nil, discardLogger())
	p := pipeline.New(pipeline.NewDatasetExtractor(d), tfm, ldr, discardLogger(), metrics, 6, 4)

	require.NoError(t, p.Run(context.Background()))

	st := p.Stats()
	assert.Equal(t, opts.Stations, st.Extracted)
	assert.Equal(t, opts.LowCoverageStations, st.Skipped, "low coverage stations should be dropped")
	assert.Equal(t, opts.Stations-opts.LowCoverageStations, st.Processed)

	table := domain.DefaultThresholds()
	for _, b := range ldr.batches {
		for _, r := range b {
			require.NotEmpty(t, r.Seasons, r.Station.ID)
			years := make([]int, len(r.Seasons))
			for i, s := range r.Seasons {
				years[i] = s.SeasonYear
				cat, err := table.Classify(s.SSWEI)
				require.NoError(t, err)
				assert.Equal(t, cat.Name, s.Category)
				assert.Greater(t, s.Probability, 0.0)
				assert.Less(t, s.Probability, 1.0)
			}
			assert.True(t, sort.IntsAreSorted(years), "seasons should be in chronological order")
			assert.GreaterOrEqual(t, r.Availability, 80.0)
		}
	}
}

type countingTransformer struct {
	inner pipeline.Transformer
	calls int
}

func (c *countingTransformer) Transform(ctx context.Context, job pipeline.StationJob) (domain.StationResult, error) {
	c.calls++
	return c.inner.Transform(ctx, job)
}

func TestCachedTransformer(t *testing.T) {
	params := testParams()
	series := syntheticSeries(t, "cached", 1990, 2005)
	job := pipeline.StationJob{Series: series}

	disk, err := cache.NewDisk[domain.StationResult](t.TempDir())
	require.NoError(t, err)

	inner := &countingTransformer{inner: pipeline.NewTransformer(params, nil, discardLogger())}
	c := pipeline.NewCachedTransformer(inner, params, 10, disk, newTestMetrics(), discardLogger())

	first, err := c.Transform(context.Background(), job)
	require.NoError(t, err)
	second, err := c.Transform(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second call should hit memory")
	assert.Equal(t, first.Seasons, second.Seasons)

	// A fresh decorator over the same directory reads from disk.
	inner2 := &countingTransformer{inner: pipeline.NewTransformer(params, nil, discardLogger())}
	c2 := pipeline.NewCachedTransformer(inner2, params, 10, disk, newTestMetrics(), discardLogger())
	third, err := c2.Transform(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 0, inner2.calls)
	assert.Equal(t, first.Seasons, third.Seasons)

	// Different parameters produce a different key.
	params.MinCoverage = 0.8
	c3 := pipeline.NewCachedTransformer(inner2, params, 10, disk, newTestMetrics(), discardLogger())
	_, err = c3.Transform(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, inner2.calls)
}

func TestCachedTransformer_ErrorsNotCached(t *testing.T) {
	params := testParams()
	job := pipeline.StationJob{Series: syntheticSeries(t, "short", 2000, 2001)}

	inner := &countingTransformer{inner: pipeline.NewTransformer(params, nil, discardLogger())}
	c := pipeline.NewCachedTransformer(inner, params, 10, nil, newTestMetrics(), discardLogger())

	for range 2 {
		_, err := c.Transform(context.Background(), job)
		require.ErrorIs(t, err, domain.ErrInsufficientSeasons)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestParamsFingerprint_Stable(t *testing.T) {
	a := pipeline.ParamsFingerprint(testParams())
	b := pipeline.ParamsFingerprint(testParams())
	assert.Equal(t, a, b)

	p := testParams()
	p.Thresholds = nil
	assert.Equal(t, a, pipeline.ParamsFingerprint(p), "nil thresholds mean the defaults")
}

func TestDatasetExtractor_WithPrecipitation(t *testing.T) {
	d := mock.Dataset(mock.Options{Stations: 3, StartYear: 2000, EndYear: 2001, Seed: 1})
	precip := domain.FilterStations(mock.Precipitation(d, 1), []string{"MOCK002"})

	ext := pipeline.NewDatasetExtractor(d).WithPrecipitation(precip)
	jobs, err := ext.ExtractBatch(context.Background(), 10)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, jobs, 3)

	assert.Nil(t, jobs[0].Precip, "stations without precipitation get none")
	require.NotNil(t, jobs[1].Precip)
	assert.Equal(t, "MOCK002", jobs[1].Precip.Station.ID)
	assert.Equal(t, precip.Values[0], jobs[1].Precip.Values)
	assert.Nil(t, jobs[2].Precip)
}

func TestStationTransformer_AttachesPrecipitation(t *testing.T) {
	series := syntheticSeries(t, "wet", 1990, 2009)
	d := &domain.Dataset{Stations: []domain.Station{series.Station}, Times: series.Times, Values: [][]float64{series.Values}}
	precip := mock.Precipitation(d, 3).StationSeries(0)
	tfm := pipeline.NewTransformer(testParams(), nil, discardLogger())

	res, err := tfm.Transform(context.Background(), pipeline.StationJob{Series: series, Precip: &precip})
	require.NoError(t, err)
	require.NotEmpty(t, res.Seasons)
	totals := domain.SeasonalPrecipitation(precip, domain.DefaultSeason, 0.9)
	for i, s := range res.Seasons {
		require.NotNil(t, s.Precipitation, "season %d", s.SeasonYear)
		assert.InDelta(t, totals[i].Total, *s.Precipitation, 1e-3)
		assert.Greater(t, *s.Precipitation, 0.0)
	}

	dry, err := tfm.Transform(context.Background(), pipeline.StationJob{Series: series})
	require.NoError(t, err)
	assert.Nil(t, dry.Seasons[0].Precipitation)
}

func TestCachedTransformer_PrecipitationChangesKey(t *testing.T) {
	params := testParams()
	series := syntheticSeries(t, "cached", 1990, 2005)
	d := &domain.Dataset{Stations: []domain.Station{series.Station}, Times: series.Times, Values: [][]float64{series.Values}}
	precip := mock.Precipitation(d, 5).StationSeries(0)

	inner := &countingTransformer{inner: pipeline.NewTransformer(params, nil, discardLogger())}
	c := pipeline.NewCachedTransformer(inner, params, 10, nil, newTestMetrics(), discardLogger())

	dry, err := c.Transform(context.Background(), pipeline.StationJob{Series: series})
	require.NoError(t, err)
	wet, err := c.Transform(context.Background(), pipeline.StationJob{Series: series, Precip: &precip})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "precipitation should not share the cache entry")
	assert.Nil(t, dry.Seasons[0].Precipitation)
	assert.NotNil(t, wet.Seasons[0].Precipitation)
}
