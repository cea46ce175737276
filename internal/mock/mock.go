// Package mock generates deterministic synthetic SWE datasets, basin
// polygons and DEM tiles for tests and local runs.
package mock

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/geo"
)

// Options controls dataset generation.
type Options struct {
	Stations  int
	StartYear int
	EndYear   int // inclusive
	Seed      uint64

	// MissingFraction of days are set to NaN at random.
	MissingFraction float64

	// LowCoverageStations are emptied to 40% availability so the
	// availability filter has something to drop.
	LowCoverageStations int
}

// DefaultOptions is a small 20-station, 30-year dataset.
func DefaultOptions() Options {
	return Options{
		Stations:            20,
		StartYear:           1990,
		EndYear:             2019,
		Seed:                42,
		MissingFraction:     0.02,
		LowCoverageStations: 2,
	}
}

// Basin extent shared by the generated stations, polygons and DEM.
const (
	minLon = -116.0
	maxLon = -115.0
	minLat = 51.0
	maxLat = 51.6

	// BasinID is the id of the generated basin.
	BasinID = "05BB001"
)

// Dataset builds a station dataset on a daily axis from 1 January of
// StartYear to 31 December of EndYear.
func Dataset(o Options) *domain.Dataset {
	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	times := Days(o.StartYear, o.EndYear)

	d := &domain.Dataset{
		Variable: "snw",
		Units:    "kg m-2",
		Stations: make([]domain.Station, o.Stations),
		Times:    times,
		Values:   make([][]float64, o.Stations),
	}
	for s := 0; s < o.Stations; s++ {
		st := domain.Station{
			ID:        fmt.Sprintf("MOCK%03d", s+1),
			Name:      fmt.Sprintf("Mock station %d", s+1),
			Lat:       minLat + rng.Float64()*(maxLat-minLat),
			Lon:       minLon + rng.Float64()*(maxLon-minLon),
			Elevation: math.Round(800 + rng.Float64()*1800),
		}
		// Stations outside the basin let buffer extraction drop something.
		if s%7 == 6 {
			st.Lon = maxLon + 0.5 + rng.Float64()
		}
		d.Stations[s] = st
		d.Values[s] = seasonalSWE(rng, times, st.Elevation, o.MissingFraction)
		if s < o.LowCoverageStations {
			for i := range d.Values[s] {
				if i%10 < 6 {
					d.Values[s][i] = math.NaN()
				}
			}
		}
	}
	return d
}

// Precipitation builds a daily precipitation dataset for the stations and
// time axis of d. Roughly a third of days are wet, with winter days wetter
// at higher elevations.
func Precipitation(d *domain.Dataset, seed uint64) *domain.Dataset {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	p := &domain.Dataset{
		Variable: "pr",
		Units:    domain.PrecipitationUnits,
		Stations: d.Stations,
		Times:    d.Times,
		Values:   make([][]float64, d.Len()),
	}
	for s, st := range d.Stations {
		scale := 4 + st.Elevation/500
		if math.IsNaN(st.Elevation) {
			scale = 5
		}
		p.Values[s] = make([]float64, len(d.Times))
		for i, t := range d.Times {
			if rng.Float64() > 0.35 {
				continue
			}
			amount := rng.ExpFloat64() * scale
			if m := t.Month(); m >= time.November || m <= time.March {
				amount *= 1.5
			}
			p.Values[s][i] = math.Round(amount*10) / 10
		}
	}
	return p
}

// Series builds the series of a single station, useful for unit tests.
func Series(id string, startYear, endYear int, seed uint64) domain.Series {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	times := Days(startYear, endYear)
	st := domain.Station{ID: id, Lat: 51.2, Lon: -115.5, Elevation: 1800}
	return domain.Series{Station: st, Times: times, Values: seasonalSWE(rng, times, st.Elevation, 0)}
}

// Days returns a daily UTC axis covering whole years.
func Days(startYear, endYear int) []time.Time {
	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, 0, int(end.Sub(start).Hours()/24))
	for t := start; t.Before(end); t = t.AddDate(0, 0, 1) {
		out = append(out, t)
	}
	return out
}

// seasonalSWE accumulates linearly from 1 November to a peak on 15 March
// and melts out by 31 May. Each season draws its own peak.
func seasonalSWE(rng *rand.Rand, times []time.Time, elevation, missing float64) []float64 {
	base := 100 + elevation*0.25
	peaks := map[int]float64{}
	out := make([]float64, len(times))
	for i, t := range times {
		season := t.Year()
		if t.Month() >= time.November {
			season++
		}
		peak, ok := peaks[season]
		if !ok {
			peak = math.Max(0, base*(1+0.35*rng.NormFloat64()))
			peaks[season] = peak
		}
		out[i] = peak * shape(t)
		if missing > 0 && rng.Float64() < missing {
			out[i] = math.NaN()
		}
	}
	return out
}

func shape(t time.Time) float64 {
	y := t.Year()
	if t.Month() >= time.November {
		y++
	}
	onset := time.Date(y-1, time.November, 1, 0, 0, 0, 0, time.UTC)
	peak := time.Date(y, time.March, 15, 0, 0, 0, 0, time.UTC)
	melt := time.Date(y, time.May, 31, 0, 0, 0, 0, time.UTC)
	switch {
	case t.Before(onset) || !t.Before(melt):
		return 0
	case t.Before(peak):
		return t.Sub(onset).Hours() / peak.Sub(onset).Hours()
	default:
		return 1 - t.Sub(peak).Hours()/melt.Sub(peak).Hours()
	}
}

// Basins returns a feature collection with the generated basin and a
// neighbouring one, keyed by Station_ID.
func Basins() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	bow := geojson.NewFeature(orb.Polygon{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}})
	bow.Properties["Station_ID"] = BasinID
	bow.Properties["Name"] = "Bow River at Banff (synthetic)"
	fc.Append(bow)

	east := geojson.NewFeature(orb.Polygon{{
		{maxLon, minLat}, {maxLon + 1, minLat}, {maxLon + 1, maxLat}, {maxLon, maxLat}, {maxLon, minLat},
	}})
	east.Properties["Station_ID"] = "05BH004"
	east.Properties["Name"] = "Bow River at Calgary (synthetic)"
	fc.Append(east)
	return fc
}

// DEMTiles returns two adjacent elevation tiles covering both basins with
// a 0.05 degree cell size. Elevation falls from west to east.
func DEMTiles() []*geo.Grid {
	const cs = 0.05
	nx := int(math.Round((maxLon + 1 - minLon) / cs / 2))
	ny := int(math.Round((maxLat - minLat) / cs))
	tiles := make([]*geo.Grid, 2)
	for i := range tiles {
		x0 := minLon + float64(i*nx)*cs
		g := geo.NewGrid(x0, maxLat, cs, nx, ny, -9999)
		for r := 0; r < ny; r++ {
			for c := 0; c < nx; c++ {
				p := g.CellCenter(r, c)
				g.Set(r, c, math.Round(2600-(p[0]-minLon)*800+(p[1]-minLat)*200))
			}
		}
		tiles[i] = g
	}
	return tiles
}
