package domain

import (
	"fmt"
	"math"
	"time"
)

// AssessAvailability returns the percentage (0-100) of non-missing values.
// An empty slice has zero availability.
func AssessAvailability(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	valid := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			valid++
		}
	}
	return float64(valid) / float64(len(values)) * 100
}

// DatasetAvailability maps each station id to its availability percentage.
func DatasetAvailability(d *Dataset) map[string]float64 {
	out := make(map[string]float64, d.Len())
	for i, s := range d.Stations {
		out[s.ID] = AssessAvailability(d.Values[i])
	}
	return out
}

// FilterStations returns a dataset restricted to the listed station ids,
// preserving dataset order. Unknown ids are ignored. Value slices are shared.
func FilterStations(d *Dataset, ids []string) *Dataset {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	return d.filter(func(i int) bool {
		_, ok := keep[d.Stations[i].ID]
		return ok
	})
}

// FilterByAvailability keeps stations whose availability is at least
// minPercent.
func FilterByAvailability(d *Dataset, minPercent float64) *Dataset {
	return d.filter(func(i int) bool {
		return AssessAvailability(d.Values[i]) >= minPercent
	})
}

func (d *Dataset) filter(keep func(i int) bool) *Dataset {
	out := &Dataset{Variable: d.Variable, Units: d.Units, Times: d.Times}
	for i := range d.Stations {
		if keep(i) {
			out.Stations = append(out.Stations, d.Stations[i])
			out.Values = append(out.Values, d.Values[i])
		}
	}
	return out
}

// UpdateCoordinates replaces station coordinates from the given updates,
// keyed by station id, and returns how many stations changed.
func UpdateCoordinates(stations []Station, updates map[string]LatLon) int {
	n := 0
	for i := range stations {
		if ll, ok := updates[stations[i].ID]; ok {
			stations[i].Lat = ll.Lat
			stations[i].Lon = ll.Lon
			n++
		}
	}
	return n
}

// ResampleDaily averages sub-daily observations into UTC calendar days.
// NaN observations are ignored; a day without valid observations is NaN.
// The returned days are contiguous from the first to the last input day.
func ResampleDaily(times []time.Time, values []float64) ([]time.Time, []float64) {
	return resampleDays(times, values, true)
}

// SumDaily accumulates sub-daily observations into UTC calendar days, the
// aggregation used for precipitation. Days are contiguous as in ResampleDaily.
func SumDaily(times []time.Time, values []float64) ([]time.Time, []float64) {
	return resampleDays(times, values, false)
}

func resampleDays(times []time.Time, values []float64, mean bool) ([]time.Time, []float64) {
	if len(times) == 0 {
		return nil, nil
	}
	first, last := truncateDay(times[0]), truncateDay(times[0])
	for _, t := range times[1:] {
		d := truncateDay(t)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	n := int(last.Sub(first).Hours()/24) + 1
	sums := make([]float64, n)
	counts := make([]int, n)
	for i, t := range times {
		if math.IsNaN(values[i]) {
			continue
		}
		idx := int(truncateDay(t).Sub(first).Hours() / 24)
		sums[idx] += values[i]
		counts[idx]++
	}

	days := make([]time.Time, n)
	out := make([]float64, n)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
		if counts[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sums[i]
		if mean {
			out[i] /= float64(counts[i])
		}
	}
	return days, out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FillGaps linearly interpolates interior runs of NaN no longer than
// maxGap, in place. Leading and trailing runs, and longer runs, are left
// missing. It returns the number of values filled. Values are assumed to be
// on a contiguous daily axis; use FillGapsByTime otherwise.
func FillGaps(values []float64, maxGap int) int {
	if maxGap <= 0 {
		return 0
	}
	filled := 0
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 && i-prev-1 <= maxGap {
			start, end := values[prev], v
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				values[j] = start + (end-start)*float64(j-prev)/span
				filled++
			}
		}
		prev = i
	}
	return filled
}

// FillGapsByTime linearly interpolates interior runs of NaN in time, in
// place. A run is filled when its valid neighbours are at most maxGap+1 days
// apart, so dates absent from times count towards the gap length. It
// returns the number of values filled.
func FillGapsByTime(times []time.Time, values []float64, maxGap int) int {
	if maxGap <= 0 {
		return 0
	}
	limit := time.Duration(maxGap+1) * 24 * time.Hour
	filled := 0
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			span := times[i].Sub(times[prev])
			if span > 0 && span <= limit {
				start, end := values[prev], v
				for j := prev + 1; j < i; j++ {
					frac := float64(times[j].Sub(times[prev])) / float64(span)
					values[j] = start + (end-start)*frac
					filled++
				}
			}
		}
		prev = i
	}
	return filled
}

// BasinMean returns the daily mean across all stations of a dataset,
// ignoring missing values. Days with no valid station are NaN.
func BasinMean(d *Dataset) []float64 {
	out := make([]float64, len(d.Times))
	for t := range d.Times {
		sum, n := 0.0, 0
		for s := range d.Stations {
			if v := d.Values[s][t]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			out[t] = math.NaN()
			continue
		}
		out[t] = sum / float64(n)
	}
	return out
}

// IsSubDaily reports whether any two consecutive times fall on the same
// UTC day.
func IsSubDaily(times []time.Time) bool {
	for i := 1; i < len(times); i++ {
		if truncateDay(times[i]).Equal(truncateDay(times[i-1])) {
			return true
		}
	}
	return false
}

// HasMissingDates reports whether the UTC days of consecutive times skip
// at least one calendar day.
func HasMissingDates(times []time.Time) bool {
	for i := 1; i < len(times); i++ {
		if truncateDay(times[i]).Sub(truncateDay(times[i-1])) > 24*time.Hour {
			return true
		}
	}
	return false
}

// ResampleDataset returns a copy of d with every station averaged into
// contiguous UTC calendar days. Absent days become NaN.
func ResampleDataset(d *Dataset) *Dataset {
	return resampleDataset(d, ResampleDaily)
}

func resampleDataset(d *Dataset, resample func([]time.Time, []float64) ([]time.Time, []float64)) *Dataset {
	out := &Dataset{Variable: d.Variable, Units: d.Units, Stations: d.Stations}
	out.Values = make([][]float64, d.Len())
	for i := range d.Stations {
		out.Times, out.Values[i] = resample(d.Times, d.Values[i])
	}
	if d.Len() == 0 {
		out.Times, _ = resample(d.Times, make([]float64, len(d.Times)))
	}
	return out
}

// BasinMeanID is the station id given to the basin mean series of basin.
func BasinMeanID(basin string) string {
	return basin + "-mean"
}

// BasinMeanSeries builds a pseudo-station from the daily basin mean of d.
// Its coordinates are the mean station position and its elevation the mean
// of the known station elevations (NaN when none are known).
func BasinMeanSeries(d *Dataset, basin string) Series {
	var lat, lon, elev float64
	nElev := 0
	for _, s := range d.Stations {
		lat += s.Lat
		lon += s.Lon
		if !math.IsNaN(s.Elevation) {
			elev += s.Elevation
			nElev++
		}
	}
	st := Station{ID: BasinMeanID(basin), Name: basin + " basin mean", Basin: basin, Elevation: math.NaN()}
	if n := float64(d.Len()); n > 0 {
		st.Lat, st.Lon = lat/n, lon/n
	}
	if nElev > 0 {
		st.Elevation = elev / float64(nElev)
	}
	return Series{Station: st, Times: d.Times, Values: BasinMean(d)}
}

// Append adds a station series that shares the dataset's time axis.
func (d *Dataset) Append(s Series) error {
	if len(s.Values) != len(d.Times) {
		return fmt.Errorf("%w: series %s has %d values for %d times",
			ErrInsufficientData, s.Station.ID, len(s.Values), len(d.Times))
	}
	d.Stations = append(d.Stations, s.Station)
	d.Values = append(d.Values, s.Values)
	return nil
}
