package netcdf

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/snow-drought-index/internal/geo"
)

// LoadGrid reads a [y, x] raster variable with x and y cell-centre
// coordinate variables. Grids stored south-up are flipped to north-up.
func LoadGrid(path, variable string) (*geo.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	defer f.Close()

	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("load grid: open netcdf %s: %w", path, err)
	}

	xs, err := readFloats(ff, "x")
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	ys, err := readFloats(ff, "y")
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	if len(xs) < 2 || len(ys) < 2 {
		return nil, fmt.Errorf("load grid: need at least 2x2 cells, have %dx%d", len(xs), len(ys))
	}
	raw, err := readFloats(ff, variable)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	nx, ny := len(xs), len(ys)
	if len(raw) != nx*ny {
		return nil, fmt.Errorf("load grid: %s has %d values, want %d", variable, len(raw), nx*ny)
	}

	cs := xs[1] - xs[0]
	if cs <= 0 || math.Abs(math.Abs(ys[1]-ys[0])-cs) > 1e-9*cs {
		return nil, fmt.Errorf("load grid: %w: non-square or descending x cells", geo.ErrGridMismatch)
	}
	southUp := ys[1] > ys[0]
	top := ys[0]
	if southUp {
		top = ys[ny-1]
	}

	noData := fillValue(ff.Header, variable)
	g := geo.NewGrid(xs[0]-cs/2, top+cs/2, cs, nx, ny, noData)
	for r := 0; r < ny; r++ {
		src := r
		if southUp {
			src = ny - 1 - r
		}
		copy(g.Values[r*nx:(r+1)*nx], raw[src*nx:(src+1)*nx])
	}
	return g, nil
}

// WriteGrid writes g north-up with cell-centre coordinates.
func WriteGrid(path, variable string, g *geo.Grid) error {
	if g.NX == 0 || g.NY == 0 {
		return fmt.Errorf("write grid: %w: empty grid", geo.ErrGridMismatch)
	}
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.NY, g.NX})
	h.AddVariable("x", []string{"x"}, []float64{})
	h.AddVariable("y", []string{"y"}, []float64{})
	h.AddVariable(variable, []string{"y", "x"}, []float64{})
	h.AddAttribute(variable, "_FillValue", []float64{g.NoData})
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	defer f.Close()

	ff, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write grid: create netcdf: %w", err)
	}

	xs := make([]float64, g.NX)
	for c := range xs {
		xs[c] = g.CellCenter(0, c)[0]
	}
	ys := make([]float64, g.NY)
	for r := range ys {
		ys[r] = g.CellCenter(r, 0)[1]
	}
	for name, data := range map[string][]float64{"x": xs, "y": ys, variable: g.Values} {
		if err := writeVariable(ff, name, data); err != nil {
			return fmt.Errorf("write grid: %w", err)
		}
	}
	return nil
}
