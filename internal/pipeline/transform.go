package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// StationTransformer implements Transformer using the domain workflow
// with optional reverse geocoding enrichment.
type StationTransformer struct {
	params   domain.ProcessParams
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a StationTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(params domain.ProcessParams, geocoder domain.Geocoder, logger *slog.Logger) *StationTransformer {
	return &StationTransformer{
		params:   params,
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *StationTransformer) Transform(ctx context.Context, job StationJob) (domain.StationResult, error) {
	result, err := domain.ProcessSeries(job.Series, t.params)
	if err != nil {
		return domain.StationResult{}, err
	}

	if job.Precip != nil {
		totals := domain.SeasonalPrecipitation(*job.Precip, t.params.Season, t.params.MinCoverage)
		domain.AttachPrecipitation(result.Seasons, totals)
	}

	result.Station = domain.EnrichStation(ctx, result.Station, t.geocoder, t.logger)
	return result, nil
}
