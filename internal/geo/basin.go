// Package geo handles the vector and raster geometry of the workflow: basin
// polygons, station extraction by basin, DEM mosaics and zonal statistics.
//
// Coordinates are WGS-84 longitude/latitude. Distances used for basin
// buffers are computed on a local equirectangular projection around each
// station, which is accurate to well under a percent for buffers of tens of
// kilometres.
package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrBasinNotFound is returned when no basin carries the requested id.
	ErrBasinNotFound = errors.New("basin not found")

	// ErrUnsupportedGeometry is returned for basin features that are not
	// polygons.
	ErrUnsupportedGeometry = errors.New("unsupported basin geometry")
)

// Basin is a named drainage polygon.
type Basin struct {
	ID         string
	Name       string
	Geometry   orb.MultiPolygon
	Properties map[string]any
}

// FindBasin returns the basin with the given id.
func FindBasin(basins []Basin, id string) (Basin, error) {
	for _, b := range basins {
		if b.ID == id {
			return b, nil
		}
	}
	return Basin{}, fmt.Errorf("%w: %s", ErrBasinNotFound, id)
}

// LoadBasins reads basin polygons from a GeoJSON feature collection or an
// ESRI shapefile, chosen by file extension. idField names the attribute
// holding the basin id.
func LoadBasins(path, idField string) ([]Basin, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSON(path, idField)
	case ".shp":
		return loadShapefile(path, idField)
	default:
		return nil, fmt.Errorf("load basins: unsupported file type %q", filepath.Ext(path))
	}
}

func loadGeoJSON(path, idField string) ([]Basin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load basins: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("load basins: decode geojson: %w", err)
	}

	basins := make([]Basin, 0, len(fc.Features))
	for i, f := range fc.Features {
		mp, err := toMultiPolygon(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("load basins: feature %d: %w", i, err)
		}
		props := map[string]any(f.Properties)
		basins = append(basins, Basin{
			ID:         propertyString(props, idField),
			Name:       basinName(props),
			Geometry:   mp,
			Properties: props,
		})
	}
	return basins, nil
}

func loadShapefile(path, idField string) ([]Basin, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load basins: %w", err)
	}
	defer r.Close()

	fields := r.Fields()
	var basins []Basin
	for r.Next() {
		n, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, fmt.Errorf("load basins: record %d: %w: %T", n, ErrUnsupportedGeometry, shape)
		}
		props := make(map[string]any, len(fields))
		for i, f := range fields {
			props[f.String()] = dbfString(r.ReadAttribute(n, i))
		}
		basins = append(basins, Basin{
			ID:         propertyString(props, idField),
			Name:       basinName(props),
			Geometry:   shpPolygon(poly),
			Properties: props,
		})
	}
	return basins, nil
}

// dbfString strips the NUL and space padding of a DBF character field.
func dbfString(v string) string {
	return strings.TrimSpace(strings.Trim(v, "\x00"))
}

// shpPolygon converts shapefile parts to polygons. Clockwise rings are
// outer boundaries, counter-clockwise rings are holes of the preceding
// outer ring.
func shpPolygon(p *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
}

func propertyString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func basinName(props map[string]any) string {
	for _, k := range []string{"Name", "name", "NAME", "Station_Name"} {
		if s := propertyString(props, k); s != "" {
			return s
		}
	}
	return ""
}
