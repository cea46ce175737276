package domain

import (
	"fmt"
	"math"
)

// ProcessParams configures ProcessSeries.
type ProcessParams struct {
	IndexParams
	MinAvailability float64 // percent, 0-100
	MaxGapDays      int
}

// ProcessSeries runs the per-station workflow: availability check, gap
// filling on a copy of the values, then SSWEI computation. The input series
// is not modified.
func ProcessSeries(s Series, p ProcessParams) (StationResult, error) {
	availability := AssessAvailability(s.Values)
	if availability == 0 || availability < p.MinAvailability {
		return StationResult{}, fmt.Errorf("%w: station %s availability %.1f%% below %.1f%%",
			ErrInsufficientData, s.Station.ID, availability, p.MinAvailability)
	}

	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	filled := FillGapsByTime(s.Times, values, p.MaxGapDays)

	indices, err := ComputeSSWEI(Series{Station: s.Station, Times: s.Times, Values: values}, p.IndexParams)
	if err != nil {
		return StationResult{}, err
	}

	return StationResult{
		Station:      s.Station,
		Availability: roundTo(availability, 2),
		GapsFilled:   filled,
		Seasons:      indices,
		ProcessedAt:  clock.Now(),
	}, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
