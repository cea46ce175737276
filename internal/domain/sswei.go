package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientSeasons is returned when too few complete seasons remain
// to rank.
var ErrInsufficientSeasons = errors.New("insufficient seasons")

// SeasonWindow is a month/day range that may wrap New Year. Both ends are
// inclusive.
type SeasonWindow struct {
	StartMonth time.Month
	StartDay   int
	EndMonth   time.Month
	EndDay     int
}

// DefaultSeason is 1 November through 30 April.
var DefaultSeason = SeasonWindow{StartMonth: time.November, StartDay: 1, EndMonth: time.April, EndDay: 30}

// ParseSeasonWindow builds a window from "MM-DD" start and end strings.
func ParseSeasonWindow(start, end string) (SeasonWindow, error) {
	sm, sd, err := parseMonthDay(start)
	if err != nil {
		return SeasonWindow{}, fmt.Errorf("season start: %w", err)
	}
	em, ed, err := parseMonthDay(end)
	if err != nil {
		return SeasonWindow{}, fmt.Errorf("season end: %w", err)
	}
	return SeasonWindow{StartMonth: sm, StartDay: sd, EndMonth: em, EndDay: ed}, nil
}

func parseMonthDay(s string) (time.Month, int, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month-day %q", s)
	}
	return t.Month(), t.Day(), nil
}

func (w SeasonWindow) wraps() bool {
	return mdKey(w.StartMonth, w.StartDay) > mdKey(w.EndMonth, w.EndDay)
}

func mdKey(m time.Month, d int) int { return int(m)*100 + d }

// Contains reports whether t falls inside the window.
func (w SeasonWindow) Contains(t time.Time) bool {
	k := mdKey(t.Month(), t.Day())
	start, end := mdKey(w.StartMonth, w.StartDay), mdKey(w.EndMonth, w.EndDay)
	if w.wraps() {
		return k >= start || k <= end
	}
	return k >= start && k <= end
}

// SeasonYear returns the season a date inside the window belongs to: the
// end year for wrapping windows.
func (w SeasonWindow) SeasonYear(t time.Time) int {
	if w.wraps() && mdKey(t.Month(), t.Day()) >= mdKey(w.StartMonth, w.StartDay) {
		return t.Year() + 1
	}
	return t.Year()
}

// Days returns the number of calendar days in the given season.
func (w SeasonWindow) Days(seasonYear int) int {
	startYear := seasonYear
	if w.wraps() {
		startYear--
	}
	start := time.Date(startYear, w.StartMonth, w.StartDay, 0, 0, 0, 0, time.UTC)
	end := time.Date(seasonYear, w.EndMonth, w.EndDay, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

// SeasonTotal is the integrated SWE of one season.
type SeasonTotal struct {
	SeasonYear int
	Total      float64
	ValidDays  int
}

// IntegrateSeasons integrates daily SWE over each season with the
// trapezoidal rule, using the day offset between valid observations as the
// step. Seasons with a valid-day fraction below minCoverage are dropped.
// Totals are returned in season order.
func IntegrateSeasons(s Series, w SeasonWindow, minCoverage float64) []SeasonTotal {
	type acc struct {
		total     float64
		valid     int
		lastDay   time.Time
		lastValue float64
		hasLast   bool
	}
	seasons := make(map[int]*acc)
	var order []int

	for i, t := range s.Times {
		if !w.Contains(t) {
			continue
		}
		year := w.SeasonYear(t)
		a, ok := seasons[year]
		if !ok {
			a = &acc{}
			seasons[year] = a
			order = append(order, year)
		}
		v := s.Values[i]
		if math.IsNaN(v) {
			continue
		}
		a.valid++
		if a.hasLast {
			dt := t.Sub(a.lastDay).Hours() / 24
			a.total += (a.lastValue + v) / 2 * dt
		}
		a.lastDay, a.lastValue, a.hasLast = t, v, true
	}

	sort.Ints(order)
	out := make([]SeasonTotal, 0, len(order))
	for _, year := range order {
		a := seasons[year]
		if a.valid < 2 {
			continue
		}
		if float64(a.valid)/float64(w.Days(year)) < minCoverage {
			continue
		}
		out = append(out, SeasonTotal{SeasonYear: year, Total: a.total, ValidDays: a.valid})
	}
	return out
}

// GringortenProbabilities returns the Gringorten plotting position of each
// value, p = (rank - 0.44) / (n + 0.12), with rank 1 for the smallest value.
// Tied values share their mean rank.
func GringortenProbabilities(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		mean := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = mean
		}
		i = j + 1
	}

	probs := make([]float64, n)
	for i, r := range ranks {
		probs[i] = (r - 0.44) / (float64(n) + 0.12)
	}
	return probs
}

// IndexParams configures ComputeSSWEI.
type IndexParams struct {
	Season      SeasonWindow
	MinCoverage float64
	MinSeasons  int
	Thresholds  *ThresholdTable
}

// ComputeSSWEI integrates, ranks and classifies every complete season of a
// series.
func ComputeSSWEI(s Series, p IndexParams) ([]SeasonIndex, error) {
	totals := IntegrateSeasons(s, p.Season, p.MinCoverage)
	if len(totals) == 0 || len(totals) < p.MinSeasons {
		return nil, fmt.Errorf("%w: station %s has %d, need %d", ErrInsufficientSeasons, s.Station.ID, len(totals), p.MinSeasons)
	}
	table := p.Thresholds
	if table == nil {
		table = DefaultThresholds()
	}

	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = t.Total
	}
	probs := GringortenProbabilities(values)

	out := make([]SeasonIndex, len(totals))
	for i, t := range totals {
		z := distuv.UnitNormal.Quantile(probs[i])
		cat, err := table.Classify(z)
		if err != nil {
			return nil, fmt.Errorf("classify season %d: %w", t.SeasonYear, err)
		}
		out[i] = SeasonIndex{
			SeasonYear:    t.SeasonYear,
			IntegratedSWE: t.Total,
			ValidDays:     t.ValidDays,
			Probability:   probs[i],
			SSWEI:         z,
			Category:      cat.Name,
			Drought:       table.IsDrought(cat.Name),
		}
	}
	return out, nil
}
