package domain

import (
	"math"
	"sort"
)

// PrecipitationUnits is assumed for precipitation datasets that carry no
// units attribute.
const PrecipitationUnits = "mm"

// PreparePrecipitation puts a precipitation dataset on a contiguous daily
// axis, accumulating sub-daily amounts, and keeps only the stations in ids.
// A nil ids keeps every station.
func PreparePrecipitation(p *Dataset, ids []string) *Dataset {
	if IsSubDaily(p.Times) || HasMissingDates(p.Times) {
		p = resampleDataset(p, SumDaily)
	}
	if ids != nil {
		p = FilterStations(p, ids)
	}
	if p.Units == "" {
		p.Units = PrecipitationUnits
	}
	return p
}

// SeasonalPrecipitation sums daily precipitation over each season.
// Seasons whose valid-day fraction is below minCoverage are dropped.
func SeasonalPrecipitation(s Series, w SeasonWindow, minCoverage float64) []SeasonTotal {
	totals := make(map[int]*SeasonTotal)
	for i, t := range s.Times {
		if !w.Contains(t) {
			continue
		}
		year := w.SeasonYear(t)
		st, ok := totals[year]
		if !ok {
			st = &SeasonTotal{SeasonYear: year}
			totals[year] = st
		}
		if v := s.Values[i]; !math.IsNaN(v) {
			st.Total += v
			st.ValidDays++
		}
	}

	out := make([]SeasonTotal, 0, len(totals))
	for year, st := range totals {
		if st.ValidDays == 0 || float64(st.ValidDays)/float64(w.Days(year)) < minCoverage {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeasonYear < out[j].SeasonYear })
	return out
}

// AttachPrecipitation sets the precipitation total on every index whose
// season has one and returns how many were set.
func AttachPrecipitation(indices []SeasonIndex, totals []SeasonTotal) int {
	byYear := make(map[int]float64, len(totals))
	for _, t := range totals {
		byYear[t.SeasonYear] = t.Total
	}
	n := 0
	for i := range indices {
		if v, ok := byYear[indices[i].SeasonYear]; ok {
			v := roundTo(v, 3)
			indices[i].Precipitation = &v
			n++
		}
	}
	return n
}
