package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

const earthRadiusKm = 6371.0088

// ExtractStationsInBasin returns the stations inside the basin with the
// given id, tagged with that id. With bufferKm > 0, stations within bufferKm
// of the basin boundary are included as well.
func ExtractStationsInBasin(stations []domain.Station, basins []Basin, id string, bufferKm float64) ([]domain.Station, error) {
	basin, err := FindBasin(basins, id)
	if err != nil {
		return nil, err
	}

	var out []domain.Station
	for _, s := range stations {
		if !WithinBuffer(basin.Geometry, s.Lon, s.Lat, bufferKm) {
			continue
		}
		s.Basin = basin.ID
		out = append(out, s)
	}
	return out, nil
}

// SpatialJoin assigns each station the id of the first basin containing
// it. Stations outside every basin are dropped.
func SpatialJoin(stations []domain.Station, basins []Basin) []domain.Station {
	var out []domain.Station
	for _, s := range stations {
		pt := orb.Point{s.Lon, s.Lat}
		for _, b := range basins {
			if planar.MultiPolygonContains(b.Geometry, pt) {
				s.Basin = b.ID
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// WithinBuffer reports whether (lon, lat) lies inside mp or no further than
// bufferKm from its boundary.
func WithinBuffer(mp orb.MultiPolygon, lon, lat, bufferKm float64) bool {
	pt := orb.Point{lon, lat}
	if planar.MultiPolygonContains(mp, pt) {
		return true
	}
	if bufferKm <= 0 {
		return false
	}
	return DistanceToBoundaryKm(mp, lon, lat) <= bufferKm
}

// DistanceToBoundaryKm returns the shortest distance in kilometres from
// (lon, lat) to any ring of mp.
func DistanceToBoundaryKm(mp orb.MultiPolygon, lon, lat float64) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	project := func(p orb.Point) orb.Point {
		return orb.Point{
			earthRadiusKm * (p[0] - lon) * math.Pi / 180 * cosLat,
			earthRadiusKm * (p[1] - lat) * math.Pi / 180,
		}
	}

	origin := orb.Point{0, 0}
	best := math.Inf(1)
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				d := planar.DistanceFromSegment(project(ring[i-1]), project(ring[i]), origin)
				if d < best {
					best = d
				}
			}
		}
	}
	return best
}
