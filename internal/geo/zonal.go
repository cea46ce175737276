package geo

import (
	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// BasinSummary is the elevation profile of one basin.
type BasinSummary struct {
	BasinID  string     `json:"basin_id"`
	Name     string     `json:"name"`
	Stats    ZonalStats `json:"stats"`
	Band     string     `json:"band"`
	Stations int        `json:"stations"`
}

// BinElevation returns the label of the band containing elevation, or an
// empty string for NaN.
func BinElevation(elevation float64, bands []domain.ElevationBand) string {
	i := domain.BandFor(bands, elevation)
	if i < 0 || i >= len(bands) {
		return ""
	}
	return bands[i].Label
}

// SummarizeBasins computes zonal DEM statistics per basin and bins each
// basin by its mean elevation. Stations are counted with SpatialJoin;
// stations may be nil.
func SummarizeBasins(dem *Grid, basins []Basin, bands []domain.ElevationBand, stations []domain.Station) []BasinSummary {
	counts := make(map[string]int)
	for _, s := range SpatialJoin(stations, basins) {
		counts[s.Basin]++
	}
	out := make([]BasinSummary, len(basins))
	for i, b := range basins {
		st := Zonal(dem, b.Geometry)
		out[i] = BasinSummary{
			BasinID:  b.ID,
			Name:     b.Name,
			Stats:    st,
			Band:     BinElevation(st.Mean, bands),
			Stations: counts[b.ID],
		}
	}
	return out
}
