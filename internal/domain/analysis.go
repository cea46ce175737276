package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Decade returns the first year of the decade containing year.
func Decade(year int) int {
	d := year / 10 * 10
	if year < 0 && year%10 != 0 {
		d -= 10
	}
	return d
}

// DecadeLabel formats a decade start year, e.g. 1980 -> "1980s".
func DecadeLabel(decade int) string {
	return fmt.Sprintf("%ds", decade)
}

// DecadeSummary aggregates season indices within one decade.
type DecadeSummary struct {
	Decade         int     `json:"decade"`
	Label          string  `json:"label"`
	Seasons        int     `json:"seasons"`
	DroughtSeasons int     `json:"drought_seasons"`
	DroughtFrac    float64 `json:"drought_fraction"`
	MeanSSWEI      float64 `json:"mean_sswei"`
	WorstCategory  string  `json:"worst_category"`
}

// DroughtFrequencyByDecade buckets season indices by decade of the season
// year. Summaries are sorted by decade.
func DroughtFrequencyByDecade(indices []SeasonIndex, table *ThresholdTable) []DecadeSummary {
	if table == nil {
		table = DefaultThresholds()
	}
	byDecade := make(map[int]*DecadeSummary)
	sums := make(map[int]float64)
	for _, idx := range indices {
		d := Decade(idx.SeasonYear)
		s, ok := byDecade[d]
		if !ok {
			s = &DecadeSummary{Decade: d, Label: DecadeLabel(d)}
			byDecade[d] = s
		}
		s.Seasons++
		sums[d] += idx.SSWEI
		if table.IsDrought(idx.Category) {
			s.DroughtSeasons++
		}
		if s.WorstCategory == "" || table.Rank(idx.Category) < table.Rank(s.WorstCategory) {
			s.WorstCategory = idx.Category
		}
	}

	out := make([]DecadeSummary, 0, len(byDecade))
	for d, s := range byDecade {
		s.MeanSSWEI = sums[d] / float64(s.Seasons)
		s.DroughtFrac = float64(s.DroughtSeasons) / float64(s.Seasons)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Decade < out[j].Decade })
	return out
}

// ErrInvalidBands is returned for elevation edges that are empty or not
// strictly increasing.
var ErrInvalidBands = errors.New("invalid elevation bands")

// ElevationBand is the half-open range [Lower, Upper). The first band has
// Lower = -Inf and the last Upper = +Inf.
type ElevationBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Label string  `json:"label"`
}

// ElevationBands builds bands from ascending edges. Edges 1000, 1500 give
// "< 1000 m", "1000-1500 m" and ">= 1500 m".
func ElevationBands(edges []float64) ([]ElevationBand, error) {
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: no edges", ErrInvalidBands)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, fmt.Errorf("%w: edges must be strictly increasing", ErrInvalidBands)
		}
	}
	bands := make([]ElevationBand, 0, len(edges)+1)
	bands = append(bands, ElevationBand{Lower: math.Inf(-1), Upper: edges[0], Label: fmt.Sprintf("< %g m", edges[0])})
	for i := 1; i < len(edges); i++ {
		bands = append(bands, ElevationBand{Lower: edges[i-1], Upper: edges[i], Label: fmt.Sprintf("%g-%g m", edges[i-1], edges[i])})
	}
	last := edges[len(edges)-1]
	bands = append(bands, ElevationBand{Lower: last, Upper: math.Inf(1), Label: fmt.Sprintf(">= %g m", last)})
	return bands, nil
}

// BandFor returns the index of the band containing elevation, or -1 for NaN.
func BandFor(bands []ElevationBand, elevation float64) int {
	if math.IsNaN(elevation) {
		return -1
	}
	return sort.Search(len(bands), func(i int) bool { return elevation < bands[i].Upper })
}

// BandSummary aggregates station results within one elevation band.
type BandSummary struct {
	Band        ElevationBand `json:"band"`
	Stations    int           `json:"stations"`
	Seasons     int           `json:"seasons"`
	MeanSSWEI   float64       `json:"mean_sswei"`
	DroughtFrac float64       `json:"drought_fraction"`
}

// SummarizeByElevation groups results by station elevation band. Bands
// without stations are included with zero counts.
func SummarizeByElevation(results []StationResult, bands []ElevationBand) []BandSummary {
	out := make([]BandSummary, len(bands))
	sums := make([]float64, len(bands))
	droughts := make([]int, len(bands))
	for i, b := range bands {
		out[i].Band = b
	}
	for _, r := range results {
		i := BandFor(bands, r.Station.Elevation)
		if i < 0 || i >= len(bands) {
			continue
		}
		out[i].Stations++
		for _, s := range r.Seasons {
			out[i].Seasons++
			sums[i] += s.SSWEI
			if s.Drought {
				droughts[i]++
			}
		}
	}
	for i := range out {
		if out[i].Seasons > 0 {
			out[i].MeanSSWEI = sums[i] / float64(out[i].Seasons)
			out[i].DroughtFrac = float64(droughts[i]) / float64(out[i].Seasons)
		}
	}
	return out
}

// CategoryCounts tallies seasons per category across results, including
// zero counts for every category of the table.
func CategoryCounts(results []StationResult, table *ThresholdTable) map[string]int {
	if table == nil {
		table = DefaultThresholds()
	}
	counts := make(map[string]int)
	for _, c := range table.Categories() {
		counts[c.Name] = 0
	}
	for _, r := range results {
		for _, s := range r.Seasons {
			counts[s.Category]++
		}
	}
	return counts
}
