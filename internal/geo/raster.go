package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrGridMismatch is returned when grids cannot be mosaicked together.
var ErrGridMismatch = errors.New("grid mismatch")

// Grid is a north-up raster. (X0, Y0) is the upper-left corner; row 0 is
// the northernmost row and Values[row*NX+col] holds cell (row, col).
type Grid struct {
	X0       float64
	Y0       float64
	CellSize float64
	NX       int
	NY       int
	NoData   float64
	Values   []float64
}

// NewGrid allocates a grid filled with noData.
func NewGrid(x0, y0, cellSize float64, nx, ny int, noData float64) *Grid {
	g := &Grid{X0: x0, Y0: y0, CellSize: cellSize, NX: nx, NY: ny, NoData: noData, Values: make([]float64, nx*ny)}
	for i := range g.Values {
		g.Values[i] = noData
	}
	return g
}

// At returns the value of cell (row, col).
func (g *Grid) At(row, col int) float64 { return g.Values[row*g.NX+col] }

// Set assigns the value of cell (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Values[row*g.NX+col] = v }

// Valid reports whether v is a data value for this grid.
func (g *Grid) Valid(v float64) bool {
	return !math.IsNaN(v) && v != g.NoData
}

// Bound returns the grid extent.
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.X0, g.Y0 - float64(g.NY)*g.CellSize},
		Max: orb.Point{g.X0 + float64(g.NX)*g.CellSize, g.Y0},
	}
}

// CellCenter returns the coordinates of the centre of cell (row, col).
func (g *Grid) CellCenter(row, col int) orb.Point {
	return orb.Point{
		g.X0 + (float64(col)+0.5)*g.CellSize,
		g.Y0 - (float64(row)+0.5)*g.CellSize,
	}
}

// Mosaic merges grids sharing a cell size and alignment into one grid
// covering their union. Where grids overlap, the first valid value wins.
// The result uses the NoData value of the first grid.
func Mosaic(grids ...*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("%w: no grids", ErrGridMismatch)
	}
	cs := grids[0].CellSize
	bound := grids[0].Bound()
	for _, g := range grids[1:] {
		if math.Abs(g.CellSize-cs) > 1e-9*cs {
			return nil, fmt.Errorf("%w: cell size %g differs from %g", ErrGridMismatch, g.CellSize, cs)
		}
		bound = bound.Union(g.Bound())
	}

	nx := int(math.Round((bound.Max[0] - bound.Min[0]) / cs))
	ny := int(math.Round((bound.Max[1] - bound.Min[1]) / cs))
	out := NewGrid(bound.Min[0], bound.Max[1], cs, nx, ny, grids[0].NoData)

	for _, g := range grids {
		colOff, err := alignedOffset(g.X0-out.X0, cs)
		if err != nil {
			return nil, err
		}
		rowOff, err := alignedOffset(out.Y0-g.Y0, cs)
		if err != nil {
			return nil, err
		}
		for r := 0; r < g.NY; r++ {
			for c := 0; c < g.NX; c++ {
				v := g.At(r, c)
				if !g.Valid(v) {
					continue
				}
				if out.Valid(out.At(r+rowOff, c+colOff)) {
					continue
				}
				out.Set(r+rowOff, c+colOff, v)
			}
		}
	}
	return out, nil
}

func alignedOffset(d, cs float64) (int, error) {
	n := d / cs
	rounded := math.Round(n)
	if math.Abs(n-rounded) > 1e-6 {
		return 0, fmt.Errorf("%w: grid origin not aligned to cell size %g", ErrGridMismatch, cs)
	}
	return int(rounded), nil
}

// ZonalStats summarises the valid cells of a grid whose centres fall
// inside a polygon.
type ZonalStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Sum    float64 `json:"sum"`
}

// Zonal computes ZonalStats of g within mp. With no matching cells Count is
// zero and the statistics are NaN.
func Zonal(g *Grid, mp orb.MultiPolygon) ZonalStats {
	b := mp.Bound()
	colMin := clampInt(int(math.Floor((b.Min[0]-g.X0)/g.CellSize)), 0, g.NX)
	colMax := clampInt(int(math.Ceil((b.Max[0]-g.X0)/g.CellSize)), 0, g.NX)
	rowMin := clampInt(int(math.Floor((g.Y0-b.Max[1])/g.CellSize)), 0, g.NY)
	rowMax := clampInt(int(math.Ceil((g.Y0-b.Min[1])/g.CellSize)), 0, g.NY)

	var vals []float64
	for r := rowMin; r < rowMax; r++ {
		for c := colMin; c < colMax; c++ {
			v := g.At(r, c)
			if !g.Valid(v) {
				continue
			}
			if planar.MultiPolygonContains(mp, g.CellCenter(r, c)) {
				vals = append(vals, v)
			}
		}
	}

	if len(vals) == 0 {
		nan := math.NaN()
		return ZonalStats{Min: nan, Max: nan, Mean: nan, Median: nan, Sum: 0}
	}

	sort.Float64s(vals)
	st := ZonalStats{Count: len(vals), Min: vals[0], Max: vals[len(vals)-1]}
	for _, v := range vals {
		st.Sum += v
	}
	st.Mean = st.Sum / float64(len(vals))
	mid := len(vals) / 2
	if len(vals)%2 == 0 {
		st.Median = (vals[mid-1] + vals[mid]) / 2
	} else {
		st.Median = vals[mid]
	}
	return st
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
